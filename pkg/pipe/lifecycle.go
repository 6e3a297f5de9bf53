package pipe

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ib-77/workpipe/pkg/pipe/event"
)

// Lifecycle is the state and run protocol shared by every work unit.
// Implementations embed it and call Execute from their Run method.
type Lifecycle struct {
	self  WorkUnit
	id    uuid.UUID
	key   string
	title string

	mu         sync.RWMutex
	status     Status
	statusText string
	startTime  time.Time
	stopTime   time.Time
	depth      int
	index      int
	claimed    bool
	owner      uuid.UUID

	onRun  *event.BailEvent[RunEvent]
	onPass *event.Event[PassEvent]
	onFail *event.Event[FailEvent]
	onSkip *event.Event[SkipEvent]
}

// NewLifecycle creates a pending lifecycle. Attach must be called with the
// embedding unit before the first Run.
func NewLifecycle(key, title string, opts ...event.Option) *Lifecycle {
	return &Lifecycle{
		id:     uuid.New(),
		key:    key,
		title:  title,
		status: StatusPending,
		onRun:  event.NewBail[RunEvent](EventRun, opts...),
		onPass: event.New[PassEvent](EventPass, opts...),
		onFail: event.New[FailEvent](EventFail, opts...),
		onSkip: event.New[SkipEvent](EventSkip, opts...),
	}
}

// Attach sets the unit reported in event payloads.
func (l *Lifecycle) Attach(self WorkUnit) {
	l.self = self
}

func (l *Lifecycle) ID() uuid.UUID { return l.id }

func (l *Lifecycle) Key() string { return l.key }

func (l *Lifecycle) Title() string { return l.title }

func (l *Lifecycle) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

func (l *Lifecycle) StatusText() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.statusText
}

// SetStatusText sets a free-form progress note, cleared when the unit passes.
func (l *Lifecycle) SetStatusText(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statusText = text
}

func (l *Lifecycle) StartTime() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.startTime
}

func (l *Lifecycle) StopTime() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stopTime
}

func (l *Lifecycle) Depth() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.depth
}

func (l *Lifecycle) Index() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index
}

func (l *Lifecycle) SetHierarchy(depth, index int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.depth = depth
	l.index = index
}

// Adopt records owner as the container holding the unit. A unit has at most
// one owner for its whole life.
func (l *Lifecycle) Adopt(owner uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner != uuid.Nil {
		return ErrAlreadyOwned
	}
	l.owner = owner
	return nil
}

// Owner returns the id of the owning container, or uuid.Nil.
func (l *Lifecycle) Owner() uuid.UUID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owner
}

func (l *Lifecycle) IsPending() bool { return l.Status() == StatusPending }

func (l *Lifecycle) IsRunning() bool { return l.Status() == StatusRunning }

func (l *Lifecycle) IsSkipped() bool { return l.Status() == StatusSkipped }

func (l *Lifecycle) HasPassed() bool { return l.Status() == StatusPassed }

func (l *Lifecycle) HasFailed() bool { return l.Status() == StatusFailed }

// Skip marks a pending unit as skipped when cond is true. Units that already
// left pending are not affected.
func (l *Lifecycle) Skip(cond bool) WorkUnit {
	if cond {
		l.mu.Lock()
		if l.status == StatusPending {
			_ = l.transition(StatusSkipped)
		}
		l.mu.Unlock()
	}
	return l.self
}

func (l *Lifecycle) OnRun() *event.BailEvent[RunEvent] { return l.onRun }

func (l *Lifecycle) OnPass() *event.Event[PassEvent] { return l.onPass }

func (l *Lifecycle) OnFail() *event.Event[FailEvent] { return l.onFail }

func (l *Lifecycle) OnSkip() *event.Event[SkipEvent] { return l.onSkip }

// Execute drives one run of the unit through its state machine.
//
// A unit that is skipped, has no action, or whose run event is bailed by a
// listener resolves with value unchanged and never enters running. Errors
// returned by action are passed back untouched.
func (l *Lifecycle) Execute(ctx *Context, value any, action Action) (any, error) {
	return l.ExecuteWithin(ctx, value, action, Bracket{})
}

// Bracket holds callbacks run around a claimed execution. Before is called
// once the unit is claimed and ahead of its run event, After once it has
// settled. Neither is called when the run is rejected.
type Bracket struct {
	Before func(ctx *Context, value any)
	After  func(ctx *Context, out any, err error)
}

// ExecuteWithin is Execute with b wrapped around the run.
func (l *Lifecycle) ExecuteWithin(ctx *Context, value any, action Action, b Bracket) (out any, err error) {
	if ctx == nil {
		ctx = NewContext(context.Background(), nil)
	}

	if err = l.claim(); err != nil {
		return nil, err
	}
	defer l.release()

	if b.Before != nil {
		b.Before(ctx, value)
	}
	if b.After != nil {
		defer func() { b.After(ctx, out, err) }()
	}

	return l.execute(ctx, value, action)
}

func (l *Lifecycle) execute(ctx *Context, value any, action Action) (any, error) {
	bailed := l.onRun.Emit(RunEvent{Unit: l.self, Value: value, Context: ctx})

	if bailed || action == nil || l.IsSkipped() {
		l.mu.Lock()
		if l.status != StatusSkipped {
			if err := l.transition(StatusSkipped); err != nil {
				l.mu.Unlock()
				return nil, err
			}
		}
		l.mu.Unlock()

		l.onSkip.Emit(SkipEvent{Unit: l.self, Input: value, Context: ctx})
		return value, nil
	}

	l.mu.Lock()
	if err := l.transition(StatusRunning); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.startTime = time.Now()
	l.mu.Unlock()

	out, err := invoke(ctx, value, action)

	l.mu.Lock()
	l.stopTime = time.Now()
	if err != nil {
		_ = l.transition(StatusFailed)
		l.mu.Unlock()

		l.onFail.Emit(FailEvent{Unit: l.self, Err: err, Input: value, Context: ctx})
		return nil, err
	}
	_ = l.transition(StatusPassed)
	l.statusText = ""
	l.mu.Unlock()

	l.onPass.Emit(PassEvent{Unit: l.self, Output: out, Input: value, Context: ctx})
	return out, nil
}

// transition moves the unit to next. Callers hold l.mu.
func (l *Lifecycle) transition(next Status) error {
	if !CanTransition(l.status, next) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, l.status, next)
	}
	l.status = next
	return nil
}

func (l *Lifecycle) claim() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.claimed || l.status == StatusRunning {
		return ErrAlreadyRunning
	}
	if l.status == StatusPassed || l.status == StatusFailed {
		return ErrAlreadySettled
	}
	l.claimed = true
	return nil
}

func (l *Lifecycle) release() {
	l.mu.Lock()
	l.claimed = false
	l.mu.Unlock()
}

func invoke(ctx *Context, value any, action Action) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return action(ctx, value)
}
