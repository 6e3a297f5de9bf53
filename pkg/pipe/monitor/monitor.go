package monitor

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ib-77/workpipe/pkg/pipe"
	"github.com/ib-77/workpipe/pkg/pipe/event"
)

// Monitor re-emits the events of every pipeline and work unit it reaches.
type Monitor struct {
	logger *slog.Logger

	mu        sync.Mutex
	pipelines map[pipe.Pipeline]struct{}
	units     map[uuid.UUID]struct{}

	onPipelineBeforeRun   *event.Event[pipe.BeforeRunEvent]
	onPipelineAfterRun    *event.Event[pipe.AfterRunEvent]
	onPipelineRunWorkUnit *event.Event[pipe.RunWorkUnitEvent]

	onWorkUnitRun  *event.BailEvent[pipe.RunEvent]
	onWorkUnitPass *event.Event[pipe.PassEvent]
	onWorkUnitFail *event.Event[pipe.FailEvent]
	onWorkUnitSkip *event.Event[pipe.SkipEvent]
}

type Option func(*Monitor)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func New(opts ...Option) *Monitor {
	m := &Monitor{
		logger:    slog.Default(),
		pipelines: make(map[pipe.Pipeline]struct{}),
		units:     make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	evOpts := []event.Option{event.WithLogger(m.logger)}
	m.onPipelineBeforeRun = event.New[pipe.BeforeRunEvent](pipe.EventBeforeRun, evOpts...)
	m.onPipelineAfterRun = event.New[pipe.AfterRunEvent](pipe.EventAfterRun, evOpts...)
	m.onPipelineRunWorkUnit = event.New[pipe.RunWorkUnitEvent](pipe.EventRunWorkUnit, evOpts...)
	m.onWorkUnitRun = event.NewBail[pipe.RunEvent](pipe.EventRun, evOpts...)
	m.onWorkUnitPass = event.New[pipe.PassEvent](pipe.EventPass, evOpts...)
	m.onWorkUnitFail = event.New[pipe.FailEvent](pipe.EventFail, evOpts...)
	m.onWorkUnitSkip = event.New[pipe.SkipEvent](pipe.EventSkip, evOpts...)

	return m
}

// Monitor starts observing p. Calling it again for the same pipeline has no
// effect. When p is also a work unit its own transitions are observed too.
func (m *Monitor) Monitor(p pipe.Pipeline) *Monitor {
	if pipe.IsNil(p) {
		return m
	}

	m.mu.Lock()
	if _, ok := m.pipelines[p]; ok {
		m.mu.Unlock()
		return m
	}
	m.pipelines[p] = struct{}{}
	m.mu.Unlock()

	p.OnBeforeRun().Listen(func(e pipe.BeforeRunEvent) {
		m.onPipelineBeforeRun.Emit(e)
	})
	p.OnAfterRun().Listen(func(e pipe.AfterRunEvent) {
		m.onPipelineAfterRun.Emit(e)
	})
	p.OnRunWorkUnit().Listen(func(e pipe.RunWorkUnitEvent) {
		if child, ok := e.Unit.(pipe.Pipeline); ok {
			m.Monitor(child)
		}
		m.watch(e.Unit)
		m.onPipelineRunWorkUnit.Emit(e)
	})

	if unit, ok := p.(pipe.WorkUnit); ok {
		m.watch(unit)
	}

	return m
}

// watch subscribes to the transitions of unit once.
func (m *Monitor) watch(unit pipe.WorkUnit) {
	if pipe.IsNil(unit) {
		return
	}

	m.mu.Lock()
	if _, ok := m.units[unit.ID()]; ok {
		m.mu.Unlock()
		return
	}
	m.units[unit.ID()] = struct{}{}
	m.mu.Unlock()

	unit.OnRun().Listen(func(e pipe.RunEvent) bool {
		return m.onWorkUnitRun.Emit(e)
	})
	unit.OnPass().Listen(func(e pipe.PassEvent) {
		m.onWorkUnitPass.Emit(e)
	})
	unit.OnFail().Listen(func(e pipe.FailEvent) {
		m.onWorkUnitFail.Emit(e)
	})
	unit.OnSkip().Listen(func(e pipe.SkipEvent) {
		m.onWorkUnitSkip.Emit(e)
	})
}

func (m *Monitor) OnPipelineBeforeRun() *event.Event[pipe.BeforeRunEvent] {
	return m.onPipelineBeforeRun
}

func (m *Monitor) OnPipelineAfterRun() *event.Event[pipe.AfterRunEvent] {
	return m.onPipelineAfterRun
}

func (m *Monitor) OnPipelineRunWorkUnit() *event.Event[pipe.RunWorkUnitEvent] {
	return m.onPipelineRunWorkUnit
}

// OnWorkUnitRun listeners returning true make the unit skip.
func (m *Monitor) OnWorkUnitRun() *event.BailEvent[pipe.RunEvent] {
	return m.onWorkUnitRun
}

func (m *Monitor) OnWorkUnitPass() *event.Event[pipe.PassEvent] {
	return m.onWorkUnitPass
}

func (m *Monitor) OnWorkUnitFail() *event.Event[pipe.FailEvent] {
	return m.onWorkUnitFail
}

func (m *Monitor) OnWorkUnitSkip() *event.Event[pipe.SkipEvent] {
	return m.onWorkUnitSkip
}
