package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/event"
	"github.com/ib-77/workpipe/pkg/pipe/exec"
)

// Pipeline runs its units with a single strategy.
type Pipeline struct {
	pipe.PipelineEvents

	id       uuid.UUID
	title    string
	strategy exec.Strategy
	ctx      *pipe.Context
	value    any
	poolOpts []exec.PoolOption
	logger   *slog.Logger

	mu     sync.Mutex
	units  []pipe.WorkUnit
	frozen bool
}

var _ pipe.Pipeline = (*Pipeline)(nil)

type config struct {
	title    string
	poolOpts []exec.PoolOption
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*config)

func WithTitle(title string) Option {
	return func(c *config) {
		c.title = title
	}
}

// WithPoolOptions is honoured by pooled pipelines only.
func WithPoolOptions(opts ...exec.PoolOption) Option {
	return func(c *config) {
		c.poolOpts = append(c.poolOpts, opts...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func NewWaterfall(ctx *pipe.Context, value any, opts ...Option) *Pipeline {
	return New(exec.StrategySerial, ctx, value, opts...)
}

func NewConcurrent(ctx *pipe.Context, value any, opts ...Option) *Pipeline {
	return New(exec.StrategyParallel, ctx, value, opts...)
}

func NewPooled(ctx *pipe.Context, value any, opts ...Option) *Pipeline {
	return New(exec.StrategyPool, ctx, value, opts...)
}

func NewAggregated(ctx *pipe.Context, value any, opts ...Option) *Pipeline {
	return New(exec.StrategySynchronize, ctx, value, opts...)
}

// New creates a pipeline for any strategy. A nil ctx gets a fresh context.
func New(strategy exec.Strategy, ctx *pipe.Context, value any, opts ...Option) *Pipeline {
	cfg := config{title: strategy.String(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if ctx == nil {
		ctx = pipe.NewContext(context.Background(), nil)
	}

	return &Pipeline{
		PipelineEvents: pipe.NewPipelineEvents(event.WithLogger(cfg.logger)),
		id:             uuid.New(),
		title:          cfg.title,
		strategy:       strategy,
		ctx:            ctx,
		value:          value,
		poolOpts:       cfg.poolOpts,
		logger:         cfg.logger,
	}
}

func (p *Pipeline) ID() uuid.UUID { return p.id }

func (p *Pipeline) Title() string { return p.title }

func (p *Pipeline) Strategy() exec.Strategy { return p.strategy }

func (p *Pipeline) Context() *pipe.Context { return p.ctx }

// Units returns the units in insertion order.
func (p *Pipeline) Units() []pipe.WorkUnit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pipe.WorkUnit(nil), p.units...)
}

// Add appends a unit. Units can be added until Run is called.
func (p *Pipeline) Add(unit pipe.WorkUnit) error {
	if pipe.IsNil(unit) {
		return pipe.ErrNilUnit
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return fmt.Errorf("pipeline %q: %w", p.title, pipe.ErrFrozen)
	}
	if o, ok := unit.(pipe.Ownable); ok {
		if err := o.Adopt(p.id); err != nil {
			return fmt.Errorf("pipeline %q: %w: %q", p.title, err, unit.Title())
		}
	}

	unit.SetHierarchy(0, len(p.units))
	p.units = append(p.units, unit)
	return nil
}

// AddFunc wraps action in a task bound to scope and adds it.
func (p *Pipeline) AddFunc(title string, action pipe.Action, scope any) (*pipe.Task, error) {
	t, err := pipe.NewTask(title, action, pipe.WithScope(scope), pipe.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	if err = p.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Run executes all units with the pipeline's context and value. Waterfall
// resolves with the last output, Concurrent with []any, Pooled and
// Aggregated with pipe.AggregatedResult and a nil error.
func (p *Pipeline) Run() (any, error) {
	p.mu.Lock()
	p.frozen = true
	units := append([]pipe.WorkUnit(nil), p.units...)
	p.mu.Unlock()

	p.logger.Debug("pipeline started", "id", p.id, "title", p.title, "strategy", p.strategy, "units", len(units))

	p.OnBeforeRun().Emit(pipe.BeforeRunEvent{Pipeline: p, Value: p.value})

	hook := func(unit pipe.WorkUnit, value any) {
		p.OnRunWorkUnit().Emit(pipe.RunWorkUnitEvent{Pipeline: p, Unit: unit, Value: value})
	}
	out, err := exec.Run(p.strategy, p.ctx, units, p.value, hook, p.poolOpts...)

	p.OnAfterRun().Emit(pipe.AfterRunEvent{Pipeline: p, Output: out, Err: err})

	p.logger.Debug("pipeline finished", "id", p.id, "title", p.title, "err", err)

	return out, err
}
