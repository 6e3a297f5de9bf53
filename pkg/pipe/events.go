package pipe

import "github.com/ib-77/workpipe/pkg/pipe/event"

// Event names, shared with reporters.
const (
	EventRun         = "run"
	EventPass        = "pass"
	EventFail        = "fail"
	EventSkip        = "skip"
	EventBeforeRun   = "before-run"
	EventAfterRun    = "after-run"
	EventRunWorkUnit = "run-work-unit"
)

// RunEvent is emitted before a unit decides whether to run or skip.
type RunEvent struct {
	Unit    WorkUnit
	Value   any
	Context *Context
}

// PassEvent is emitted when a unit transitions to passed.
type PassEvent struct {
	Unit    WorkUnit
	Output  any
	Input   any
	Context *Context
}

// FailEvent is emitted when a unit transitions to failed.
type FailEvent struct {
	Unit    WorkUnit
	Err     error
	Input   any
	Context *Context
}

// SkipEvent is emitted when a unit transitions to skipped.
type SkipEvent struct {
	Unit    WorkUnit
	Input   any
	Context *Context
}

// BeforeRunEvent opens a pipeline run.
type BeforeRunEvent struct {
	Pipeline Pipeline
	Value    any
}

// AfterRunEvent closes a pipeline run, whether it passed or not.
type AfterRunEvent struct {
	Pipeline Pipeline
	Output   any
	Err      error
}

// RunWorkUnitEvent is emitted by a pipeline right before it starts a child.
type RunWorkUnitEvent struct {
	Pipeline Pipeline
	Unit     WorkUnit
	Value    any
}

// PipelineEvents implements the event half of Pipeline and is meant to be
// embedded by containers.
type PipelineEvents struct {
	onBeforeRun   *event.Event[BeforeRunEvent]
	onAfterRun    *event.Event[AfterRunEvent]
	onRunWorkUnit *event.Event[RunWorkUnitEvent]
}

// NewPipelineEvents creates the three bracket events.
func NewPipelineEvents(opts ...event.Option) PipelineEvents {
	return PipelineEvents{
		onBeforeRun:   event.New[BeforeRunEvent](EventBeforeRun, opts...),
		onAfterRun:    event.New[AfterRunEvent](EventAfterRun, opts...),
		onRunWorkUnit: event.New[RunWorkUnitEvent](EventRunWorkUnit, opts...),
	}
}

func (p *PipelineEvents) OnBeforeRun() *event.Event[BeforeRunEvent] { return p.onBeforeRun }

func (p *PipelineEvents) OnAfterRun() *event.Event[AfterRunEvent] { return p.onAfterRun }

func (p *PipelineEvents) OnRunWorkUnit() *event.Event[RunWorkUnitEvent] { return p.onRunWorkUnit }
