package routine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/event"
	"github.com/ib-77/workpipe/pkg/pipe/exec"
)

// Action is the body of a routine. It decides how the routine's children are
// composed by calling strategy methods on x.
type Action func(ctx *pipe.Context, value any, x Executor) (any, error)

// Executor is the handle a routine hands to its Action. Every strategy runs
// over the routine's own children, or over subset when it is given.
type Executor interface {
	Key() string
	Options() pipe.Options

	SerializeTasks(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (any, error)
	SerializeRoutines(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (any, error)
	ParallelizeTasks(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) ([]any, error)
	ParallelizeRoutines(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) ([]any, error)
	PoolTasks(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (pipe.AggregatedResult, error)
	PoolRoutines(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (pipe.AggregatedResult, error)
	SynchronizeTasks(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (pipe.AggregatedResult, error)
	SynchronizeRoutines(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (pipe.AggregatedResult, error)

	ExecuteCommand(ctx context.Context, name string, args []string, opts ...CommandOption) (CommandResult, error)
}

// Routine is a work unit composed of tasks and other routines.
type Routine struct {
	*pipe.Lifecycle
	pipe.PipelineEvents

	execute  Action
	options  pipe.Options
	poolOpts []exec.PoolOption
	logger   *slog.Logger

	mu       sync.RWMutex
	parent   pipe.WorkUnit
	tasks    []pipe.WorkUnit
	routines []pipe.WorkUnit
	frozen   bool
}

var (
	_ pipe.WorkUnit = (*Routine)(nil)
	_ pipe.Pipeline = (*Routine)(nil)
	_ pipe.Nested   = (*Routine)(nil)
	_ Executor      = (*Routine)(nil)
)

type config struct {
	execute  Action
	options  pipe.Options
	defaults []pipe.Options
	poolOpts []exec.PoolOption
	logger   *slog.Logger
}

// Option configures a Routine.
type Option func(*config)

// WithExecute sets the routine body. Without one the routine passes its
// input through.
func WithExecute(fn Action) Option {
	return func(c *config) {
		c.execute = fn
	}
}

// WithOptions sets the routine options exposed through Executor.Options.
func WithOptions(opts pipe.Options) Option {
	return func(c *config) {
		c.options = opts
	}
}

// WithDefaults fills options missing from WithOptions.
func WithDefaults(defaults pipe.Options) Option {
	return func(c *config) {
		c.defaults = append(c.defaults, defaults)
	}
}

// WithPoolOptions applies to PoolTasks and PoolRoutines.
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

// New creates a pending routine.
func New(key, title string, opts ...Option) (*Routine, error) {
	if key == "" {
		return nil, pipe.ErrInvalidKey
	}
	if title == "" {
		return nil, pipe.ErrInvalidTitle
	}

	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	options := pipe.MergeOptions(cfg.options, cfg.defaults...)

	evOpts := []event.Option{event.WithLogger(cfg.logger)}

	r := &Routine{
		Lifecycle:      pipe.NewLifecycle(key, title, evOpts...),
		PipelineEvents: pipe.NewPipelineEvents(evOpts...),
		execute:        cfg.execute,
		options:        options,
		poolOpts:       cfg.poolOpts,
		logger:         cfg.logger,
	}
	r.Attach(r)

	return r, nil
}

// MustNew is like New but panics on error.
func MustNew(key, title string, opts ...Option) *Routine {
	r, err := New(key, title, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Routine) Kind() pipe.Kind {
	return pipe.KindRoutine
}

// Options returns a copy of the merged routine options.
func (r *Routine) Options() pipe.Options {
	return r.options.Clone()
}

// Parent returns the owning routine, or nil for a root or for a routine
// held by another kind of container.
func (r *Routine) Parent() *Routine {
	p, _ := r.ParentUnit().(*Routine)
	return p
}

// ParentUnit returns the unit r was added to, or nil.
func (r *Routine) ParentUnit() pipe.WorkUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parent
}

func (r *Routine) SetParentUnit(parent pipe.WorkUnit) {
	r.mu.Lock()
	r.parent = parent
	r.mu.Unlock()
}

// Tasks returns the child tasks in insertion order.
func (r *Routine) Tasks() []pipe.WorkUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]pipe.WorkUnit(nil), r.tasks...)
}

// Routines returns the child routines in insertion order.
func (r *Routine) Routines() []pipe.WorkUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]pipe.WorkUnit(nil), r.routines...)
}

// SetHierarchy positions the routine and re-numbers its subtree.
func (r *Routine) SetHierarchy(depth, index int) {
	r.Lifecycle.SetHierarchy(depth, index)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, t := range r.tasks {
		t.SetHierarchy(depth+1, i)
	}
	for i, c := range r.routines {
		c.SetHierarchy(depth+1, i)
	}
}

// Add appends unit to the tasks or routines of r according to its kind.
func (r *Routine) Add(unit pipe.WorkUnit) error {
	if pipe.IsNil(unit) {
		return fmt.Errorf("routine %q: %w", r.Key(), pipe.ErrNilUnit)
	}

	if err := r.checkCycle(unit); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("routine %q: %w", r.Key(), pipe.ErrFrozen)
	}

	switch unit.Kind() {
	case pipe.KindRoutine:
		if unit.Key() == "" {
			return fmt.Errorf("routine %q: %w", r.Key(), pipe.ErrInvalidKey)
		}
		for _, sibling := range r.routines {
			if sibling.Key() == unit.Key() {
				return fmt.Errorf("routine %q: %w: %q", r.Key(), pipe.ErrDuplicateKey, unit.Key())
			}
		}
		if err := adopt(r, unit); err != nil {
			return err
		}
		if n, ok := unit.(pipe.Nested); ok {
			n.SetParentUnit(r)
		}
		unit.SetHierarchy(r.Depth()+1, len(r.routines))
		r.routines = append(r.routines, unit)
	default:
		if err := adopt(r, unit); err != nil {
			return err
		}
		unit.SetHierarchy(r.Depth()+1, len(r.tasks))
		r.tasks = append(r.tasks, unit)
	}

	return nil
}

// Pipe is Add for chained construction. It panics when unit is rejected.
func (r *Routine) Pipe(unit pipe.WorkUnit) *Routine {
	if err := r.Add(unit); err != nil {
		panic(err)
	}
	return r
}

// Task creates a task bound to r and adds it.
func (r *Routine) Task(title string, action pipe.Action, cfg pipe.Options) (*pipe.Task, error) {
	t, err := pipe.NewTask(title, action,
		pipe.WithScope(r),
		pipe.WithConfig(cfg),
		pipe.WithLogger(r.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("routine %q: %w", r.Key(), err)
	}
	if err = r.Add(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Run freezes the child lists and executes the routine body. The before-run
// and after-run events bracket only runs that were not rejected.
func (r *Routine) Run(ctx *pipe.Context, value any) (any, error) {
	r.freeze()

	return r.ExecuteWithin(ctx, value, r.body(), pipe.Bracket{
		Before: func(_ *pipe.Context, value any) {
			r.logger.Debug("routine started", "id", r.ID(), "key", r.Key(), "depth", r.Depth())
			r.OnBeforeRun().Emit(pipe.BeforeRunEvent{Pipeline: r, Value: value})
		},
		After: func(_ *pipe.Context, out any, err error) {
			r.OnAfterRun().Emit(pipe.AfterRunEvent{Pipeline: r, Output: out, Err: err})
			r.logger.Debug("routine finished", "id", r.ID(), "key", r.Key(), "status", r.Status())
		},
	})
}

func (r *Routine) SerializeTasks(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (any, error) {
	units, err := r.selectTasks(subset)
	if err != nil {
		return nil, err
	}
	return exec.Serial(ctx, units, value, r.hook())
}

func (r *Routine) SerializeRoutines(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (any, error) {
	units, err := r.selectRoutines(subset)
	if err != nil {
		return nil, err
	}
	return exec.Serial(ctx, units, value, r.hook())
}

func (r *Routine) ParallelizeTasks(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) ([]any, error) {
	units, err := r.selectTasks(subset)
	if err != nil {
		return nil, err
	}
	return exec.Parallel(ctx, units, value, r.hook())
}

func (r *Routine) ParallelizeRoutines(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) ([]any, error) {
	units, err := r.selectRoutines(subset)
	if err != nil {
		return nil, err
	}
	return exec.Parallel(ctx, units, value, r.hook())
}

// PoolTasks runs the tasks with the routine's pool options. The error is
// only set when subset is not made of the routine's tasks.
func (r *Routine) PoolTasks(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (pipe.AggregatedResult, error) {
	units, err := r.selectTasks(subset)
	if err != nil {
		return pipe.AggregatedResult{}, err
	}
	return exec.Pool(ctx, units, value, r.hook(), r.poolOpts...), nil
}

func (r *Routine) PoolRoutines(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (pipe.AggregatedResult, error) {
	units, err := r.selectRoutines(subset)
	if err != nil {
		return pipe.AggregatedResult{}, err
	}
	return exec.Pool(ctx, units, value, r.hook(), r.poolOpts...), nil
}

func (r *Routine) SynchronizeTasks(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (pipe.AggregatedResult, error) {
	units, err := r.selectTasks(subset)
	if err != nil {
		return pipe.AggregatedResult{}, err
	}
	return exec.Synchronize(ctx, units, value, r.hook()), nil
}

func (r *Routine) SynchronizeRoutines(ctx *pipe.Context, value any, subset ...pipe.WorkUnit) (pipe.AggregatedResult, error) {
	units, err := r.selectRoutines(subset)
	if err != nil {
		return pipe.AggregatedResult{}, err
	}
	return exec.Synchronize(ctx, units, value, r.hook()), nil
}

func (r *Routine) body() pipe.Action {
	execute := r.execute
	if execute == nil {
		return func(_ *pipe.Context, value any) (any, error) {
			return value, nil
		}
	}
	return func(ctx *pipe.Context, value any) (any, error) {
		return execute(ctx, value, r)
	}
}

func (r *Routine) hook() exec.Hook {
	return func(unit pipe.WorkUnit, value any) {
		r.OnRunWorkUnit().Emit(pipe.RunWorkUnitEvent{Pipeline: r, Unit: unit, Value: value})
	}
}

func (r *Routine) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// checkCycle rejects unit when it is r or one of r's ancestors.
func (r *Routine) checkCycle(unit pipe.WorkUnit) error {
	var p pipe.WorkUnit = r
	for p != nil {
		if p.ID() == unit.ID() {
			return fmt.Errorf("routine %q: %w: %q", r.Key(), pipe.ErrCycle, unit.Key())
		}
		n, ok := p.(pipe.Nested)
		if !ok {
			return nil
		}
		p = n.ParentUnit()
	}
	return nil
}

func (r *Routine) selectTasks(subset []pipe.WorkUnit) ([]pipe.WorkUnit, error) {
	r.freeze()
	return r.selection(r.Tasks(), subset)
}

func (r *Routine) selectRoutines(subset []pipe.WorkUnit) ([]pipe.WorkUnit, error) {
	r.freeze()
	return r.selection(r.Routines(), subset)
}

// selection returns subset when it lists children of the collection in their
// original order, or the whole collection when subset is empty.
func (r *Routine) selection(collection, subset []pipe.WorkUnit) ([]pipe.WorkUnit, error) {
	if len(subset) == 0 {
		return collection, nil
	}

	j := 0
	for _, s := range subset {
		if pipe.IsNil(s) {
			return nil, fmt.Errorf("routine %q: %w", r.Key(), pipe.ErrNilUnit)
		}
		for j < len(collection) && collection[j].ID() != s.ID() {
			j++
		}
		if j == len(collection) {
			return nil, fmt.Errorf("routine %q: %w: %q", r.Key(), pipe.ErrNotChild, s.Title())
		}
		j++
	}

	return subset, nil
}

func adopt(r *Routine, unit pipe.WorkUnit) error {
	o, ok := unit.(pipe.Ownable)
	if !ok {
		return nil
	}
	if err := o.Adopt(r.ID()); err != nil {
		return fmt.Errorf("routine %q: %w: %q", r.Key(), err, unit.Title())
	}
	return nil
}
