package event

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Option configures an Event or BailEvent.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) config {
	c := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type entry[F any] struct {
	id uint64
	fn F
}

// registry is the listener list shared by Event and BailEvent.
type registry[F any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []entry[F]
}

func (r *registry[F]) add(fn F) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.entries = append(r.entries, entry[F]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *registry[F]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *registry[F]) snapshot() []entry[F] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entry[F], len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *registry[F]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Event is a named list of listeners invoked synchronously, in registration
// order, every time the event is emitted. It is safe for concurrent use.
type Event[T any] struct {
	name      string
	cfg       config
	listeners registry[func(T)]
}

// New creates an Event with the given name.
func New[T any](name string, opts ...Option) *Event[T] {
	return &Event[T]{name: name, cfg: newConfig(opts)}
}

// Name returns the event name.
func (e *Event[T]) Name() string {
	return e.name
}

// Listen registers fn and returns a function that removes it.
func (e *Event[T]) Listen(fn func(T)) (unlisten func()) {
	if fn == nil {
		return func() {}
	}
	return e.listeners.add(fn)
}

// Len returns the number of registered listeners.
func (e *Event[T]) Len() int {
	return e.listeners.len()
}

// Emit calls every listener with payload. Listeners registered during the
// emission are not called until the next one.
func (e *Event[T]) Emit(payload T) {
	for _, l := range e.listeners.snapshot() {
		call(e.cfg.logger, e.name, func() { l.fn(payload) })
	}
}

// BailEvent is an Event whose listeners may stop the emission by returning
// true. The emitter uses the result to short-circuit its default behavior.
type BailEvent[T any] struct {
	name      string
	cfg       config
	listeners registry[func(T) bool]
}

// NewBail creates a BailEvent with the given name.
func NewBail[T any](name string, opts ...Option) *BailEvent[T] {
	return &BailEvent[T]{name: name, cfg: newConfig(opts)}
}

// Name returns the event name.
func (e *BailEvent[T]) Name() string {
	return e.name
}

// Listen registers fn and returns a function that removes it.
func (e *BailEvent[T]) Listen(fn func(T) bool) (unlisten func()) {
	if fn == nil {
		return func() {}
	}
	return e.listeners.add(fn)
}

// Len returns the number of registered listeners.
func (e *BailEvent[T]) Len() int {
	return e.listeners.len()
}

// Emit calls listeners in order until one of them returns true, and reports
// whether that happened. A panicking listener counts as not bailing.
func (e *BailEvent[T]) Emit(payload T) (bailed bool) {
	for _, l := range e.listeners.snapshot() {
		var stop bool
		call(e.cfg.logger, e.name, func() { stop = l.fn(payload) })
		if stop {
			return true
		}
	}
	return false
}

// call runs fn and recovers a listener panic, so a faulty observer never
// aborts the unit that emitted the event.
func call(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event listener panicked",
				slog.String("event", name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	fn()
}
