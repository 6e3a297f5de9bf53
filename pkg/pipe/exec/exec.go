package exec

import (
	"context"
	"runtime/debug"

	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/core"
)

// Hook observes a unit right before it starts. Pool workers call it from
// their own goroutines, so it must be safe for concurrent use.
type Hook func(unit pipe.WorkUnit, value any)

func (h Hook) call(unit pipe.WorkUnit, value any) {
	if h != nil {
		h(unit, value)
	}
}

// Serial runs units one after another, feeding each the previous output.
// The first error stops the fold; later units are never started.
func Serial(ctx *pipe.Context, units []pipe.WorkUnit, value any, hook Hook) (any, error) {
	ctx = ensure(ctx)

	for _, u := range units {
		hook.call(u, value)

		out, err := u.Run(ctx, value)
		if err != nil {
			return nil, err
		}
		value = out
	}

	return value, nil
}

// Parallel starts every unit at once with the same value and returns their
// outputs in list order. The first error to occur is returned immediately;
// units still running are left alone and their results discarded.
func Parallel(ctx *pipe.Context, units []pipe.WorkUnit, value any, hook Hook) ([]any, error) {
	results := make([]any, len(units))
	if len(units) == 0 {
		return results, nil
	}
	ctx = ensure(ctx)

	doneCh := make(chan error, len(units))

	for i, u := range units {
		hook.call(u, value)

		go func() {
			out, err := runUnit(ctx, u, value)
			if err == nil {
				results[i] = out
			}
			doneCh <- err
		}()
	}

	for range units {
		if err := <-doneCh; err != nil {
			return nil, err
		}
	}

	return results, nil
}

type poolConfig struct {
	concurrency int
	lifo        bool
}

// PoolOption configures Pool.
type PoolOption func(*poolConfig)

// WithConcurrency caps how many units run at once. n <= 0 means no cap.
func WithConcurrency(n int) PoolOption {
	return func(c *poolConfig) {
		c.concurrency = n
	}
}

// WithLIFO starts units from the end of the list.
func WithLIFO(lifo bool) PoolOption {
	return func(c *poolConfig) {
		c.lifo = lifo
	}
}

// Pool runs every unit with the same value and waits for all of them to
// settle. A failure never stops its siblings. Outputs of passed and skipped
// units and errors of failed ones are reported in list order.
//
// Without WithConcurrency the cap comes from core.WithWorkerOptions on ctx,
// and without either every unit starts at once.
func Pool(ctx *pipe.Context, units []pipe.WorkUnit, value any, hook Hook, opts ...PoolOption) pipe.AggregatedResult {
	ctx = ensure(ctx)

	cfg := poolConfig{
		concurrency: core.GetWorkerMaxCount(ctx, 0),
		lifo:        core.IsLIFOEnabled(ctx, false),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return pool(ctx, units, value, hook, cfg)
}

// Synchronize behaves like Pool without a concurrency cap: every unit starts
// together and the call returns once all of them settled.
func Synchronize(ctx *pipe.Context, units []pipe.WorkUnit, value any, hook Hook) pipe.AggregatedResult {
	return pool(ensure(ctx), units, value, hook, poolConfig{})
}

func pool(ctx *pipe.Context, units []pipe.WorkUnit, value any, hook Hook, cfg poolConfig) pipe.AggregatedResult {
	outcomes := make([]pipe.Outcome, len(units))
	if len(units) == 0 {
		return pipe.Aggregate(outcomes)
	}

	lines := cfg.concurrency
	if lines <= 0 || lines > len(units) {
		lines = len(units)
	}

	slots := core.Slots(len(units))
	var inputCh <-chan int
	if cfg.lifo {
		inputCh = core.ToChanManyReversed(slots)
	} else {
		inputCh = core.ToChanMany(slots)
	}

	// each slot is written by exactly one line; Drive returns after all lines
	core.Drive(inputCh, func(i int) {
		u := units[i]
		hook.call(u, value)

		out, err := runUnit(ctx, u, value)
		outcomes[i] = pipe.Settle(u, out, err)
	}, nil, lines)

	return pipe.Aggregate(outcomes)
}

// runUnit turns a panic escaping a unit's Run into its failure, so one
// broken unit cannot take down the goroutines of its siblings.
func runUnit(ctx *pipe.Context, u pipe.WorkUnit, value any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &pipe.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return u.Run(ctx, value)
}

// ensure gives a nil context a fresh one so all units still share it.
func ensure(ctx *pipe.Context) *pipe.Context {
	if ctx == nil {
		return pipe.NewContext(context.Background(), nil)
	}
	return ctx
}
