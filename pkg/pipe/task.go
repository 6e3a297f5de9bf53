package pipe

import (
	"log/slog"

	"github.com/ib-77/workpipe/pkg/pipe/event"
)

// Task is a leaf work unit wrapping a single action.
type Task struct {
	*Lifecycle

	action Action
	scope  any
	config Options
}

type taskConfig struct {
	key    string
	scope  any
	config Options
	logger *slog.Logger
}

// TaskOption configures a Task.
type TaskOption func(*taskConfig)

// WithKey sets the task key. It defaults to the title.
func WithKey(key string) TaskOption {
	return func(c *taskConfig) {
		c.key = key
	}
}

// WithScope records the object the action is bound to.
func WithScope(scope any) TaskOption {
	return func(c *taskConfig) {
		c.scope = scope
	}
}

// WithConfig sets the task configuration. The map is copied.
func WithConfig(config Options) TaskOption {
	return func(c *taskConfig) {
		c.config = config.Clone()
	}
}

// WithLogger sets the logger used for listener failures.
func WithLogger(logger *slog.Logger) TaskOption {
	return func(c *taskConfig) {
		c.logger = logger
	}
}

// NewTask creates a Task. A task without an action starts out skipped.
func NewTask(title string, action Action, opts ...TaskOption) (*Task, error) {
	if title == "" {
		return nil, ErrInvalidTitle
	}

	cfg := taskConfig{key: title, config: Options{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	var evOpts []event.Option
	if cfg.logger != nil {
		evOpts = append(evOpts, event.WithLogger(cfg.logger))
	}

	t := &Task{
		Lifecycle: NewLifecycle(cfg.key, title, evOpts...),
		action:    action,
		scope:     cfg.scope,
		config:    cfg.config,
	}
	t.Attach(t)

	if action == nil {
		t.Skip(true)
	}

	return t, nil
}

func (t *Task) Kind() Kind {
	return KindTask
}

// Run executes the action with the previous stage's value.
func (t *Task) Run(ctx *Context, value any) (any, error) {
	return t.Execute(ctx, value, t.action)
}

// HasAction reports whether the task has something to run.
func (t *Task) HasAction() bool {
	return t.action != nil
}

// Scope returns the object the action was bound to, if any.
func (t *Task) Scope() any {
	return t.scope
}

// Config returns a copy of the task configuration.
func (t *Task) Config() Options {
	return t.config.Clone()
}
