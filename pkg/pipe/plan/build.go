package plan

import (
	"fmt"
	"log/slog"
	"time"

	"dario.cat/mergo"
	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/exec"
	"github.com/ib-77/workpipe/pkg/pipe/routine"
)

const defaultDebounce = 100 * time.Millisecond

type options struct {
	Logger   *slog.Logger
	Shell    string
	Debounce time.Duration
}

// Option configures Build and Watch.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.Logger = logger
	}
}

// WithShell sets the interpreter for run tasks that do not name one in
// their config. An empty shell keeps the default, sh.
func WithShell(shell string) Option {
	return func(o *options) {
		o.Shell = shell
	}
}

// WithDebounce sets how long Watch waits for writes to settle. Non-positive
// durations keep the default.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.Debounce = d
	}
}

func newOptions(opts []Option) (options, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Debounce < 0 {
		o.Debounce = 0
	}

	defaults := options{
		Logger:   slog.Default(),
		Shell:    "sh",
		Debounce: defaultDebounce,
	}
	if err := mergo.Merge(&o, defaults); err != nil {
		return options{}, fmt.Errorf("plan options: %w", err)
	}
	return o, nil
}

// Build turns a validated plan into a routine tree ready to run with
// p.NewContext and p.Value.
func Build(p *Plan, opts ...Option) (*routine.Routine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	defaults := pipe.MergeOptions(p.Defaults, pipe.Options{"shell": o.Shell})

	def := Routine{
		Key:         p.key(),
		Title:       p.Title,
		Strategy:    p.Strategy,
		Concurrency: p.Concurrency,
		LIFO:        p.LIFO,
		Tasks:       p.Tasks,
		Routines:    p.Routines,
	}

	return build(def, "", defaults, o)
}

func build(def Routine, path string, defaults pipe.Options, o options) (*routine.Routine, error) {
	strategy, err := exec.ParseStrategy(def.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", describe(path), err)
	}

	r, err := routine.New(def.Key, def.title(),
		routine.WithExecute(body(strategy, len(def.Tasks) > 0, len(def.Routines) > 0)),
		routine.WithDefaults(defaults),
		routine.WithPoolOptions(exec.WithConcurrency(def.Concurrency), exec.WithLIFO(def.LIFO)),
		routine.WithLogger(o.Logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", describe(path), err)
	}

	for i, ts := range def.Tasks {
		taskPath := fmt.Sprintf("%stasks[%d]", path, i)

		cfg := pipe.MergeOptions(ts.Config, defaults)

		t, err := r.Task(ts.Title, action(ts, cfg, o.Logger), cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", taskPath, err)
		}
		t.Skip(ts.Skip)
	}

	for i, rs := range def.Routines {
		child, err := build(rs, fmt.Sprintf("%sroutines[%d].", path, i), defaults, o)
		if err != nil {
			return nil, err
		}
		if err = r.Add(child); err != nil {
			return nil, fmt.Errorf("%sroutines[%d]: %w", path, i, err)
		}
	}

	r.Skip(def.Skip)
	return r, nil
}

func describe(path string) string {
	if path == "" {
		return "plan"
	}
	return path[:len(path)-1]
}

func action(t Task, cfg pipe.Options, logger *slog.Logger) pipe.Action {
	switch {
	case t.Run != "":
		return shellAction(t.Title, t.Run, cfg, logger)
	case t.Lua != "":
		return luaAction(t.Lua)
	default:
		return nil
	}
}

// body runs the tasks and then the routines of a routine with one strategy.
// Parallel stages hand their []any on, aggregating stages their results,
// and aggregated failures fail the routine.
func body(s exec.Strategy, hasTasks, hasRoutines bool) routine.Action {
	return func(ctx *pipe.Context, value any, x routine.Executor) (any, error) {
		var err error

		if hasTasks {
			value, err = stage(s, ctx, value, x.SerializeTasks, x.ParallelizeTasks, x.PoolTasks, x.SynchronizeTasks)
			if err != nil {
				return nil, err
			}
		}
		if hasRoutines {
			value, err = stage(s, ctx, value, x.SerializeRoutines, x.ParallelizeRoutines, x.PoolRoutines, x.SynchronizeRoutines)
			if err != nil {
				return nil, err
			}
		}

		return value, nil
	}
}

type (
	serialFn    func(*pipe.Context, any, ...pipe.WorkUnit) (any, error)
	parallelFn  func(*pipe.Context, any, ...pipe.WorkUnit) ([]any, error)
	aggregateFn func(*pipe.Context, any, ...pipe.WorkUnit) (pipe.AggregatedResult, error)
)

func stage(s exec.Strategy, ctx *pipe.Context, value any,
	serial serialFn, parallel parallelFn, pool, synchronize aggregateFn) (any, error) {
	switch {
	case s.Aggregates():
		run := synchronize
		if s == exec.StrategyPool {
			run = pool
		}
		return aggregated(run(ctx, value))
	case s == exec.StrategyParallel:
		return parallel(ctx, value)
	default:
		return serial(ctx, value)
	}
}

func aggregated(res pipe.AggregatedResult, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if res.Failed() {
		return nil, res.Err()
	}
	return res.Results, nil
}
