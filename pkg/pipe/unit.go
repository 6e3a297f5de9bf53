package pipe

import (
	"time"

	"github.com/google/uuid"
	"github.com/ib-77/workpipe/pkg/pipe/event"
)

// Kind tells containers which collection a work unit belongs to.
type Kind uint8

const (
	KindTask Kind = iota
	KindRoutine
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindRoutine:
		return "routine"
	default:
		return "unknown"
	}
}

// Hierarchical is the position of a unit within its tree.
type Hierarchical interface {
	// Depth is 0 for a root and grows by one per owning routine.
	Depth() int
	// Index is the position within the owner's collection.
	Index() int
}

// Runnable runs with a shared context and the previous stage's output.
type Runnable interface {
	Run(ctx *Context, value any) (any, error)
}

// WorkUnit is a named, stateful unit of execution.
type WorkUnit interface {
	Runnable
	Hierarchical

	ID() uuid.UUID
	Key() string
	Title() string
	Kind() Kind

	Status() Status
	StatusText() string
	SetStatusText(text string)
	StartTime() time.Time
	StopTime() time.Time

	IsPending() bool
	IsRunning() bool
	IsSkipped() bool
	HasPassed() bool
	HasFailed() bool

	// Skip marks a pending unit as skipped when cond is true.
	Skip(cond bool) WorkUnit
	// SetHierarchy is called by the owning container.
	SetHierarchy(depth, index int)

	OnRun() *event.BailEvent[RunEvent]
	OnPass() *event.Event[PassEvent]
	OnFail() *event.Event[FailEvent]
	OnSkip() *event.Event[SkipEvent]
}

// Ownable units accept exactly one owning container.
type Ownable interface {
	Adopt(owner uuid.UUID) error
	Owner() uuid.UUID
}

// Nested units remember the composite unit they were added to. Containers
// walk ParentUnit links to refuse cycles.
type Nested interface {
	WorkUnit
	ParentUnit() WorkUnit
	SetParentUnit(parent WorkUnit)
}

// Pipeline is a container that runs work units and reports when it starts,
// finishes, and hands each child over for execution.
type Pipeline interface {
	Title() string

	OnBeforeRun() *event.Event[BeforeRunEvent]
	OnAfterRun() *event.Event[AfterRunEvent]
	OnRunWorkUnit() *event.Event[RunWorkUnitEvent]
}
