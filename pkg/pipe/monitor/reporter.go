package monitor

import (
	"log/slog"
	"time"

	"github.com/ib-77/workpipe/pkg/pipe"
)

// LogReporter writes every transition seen by a monitor to a slog logger.
type LogReporter struct {
	logger *slog.Logger
}

func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

// Attach subscribes to m and returns a function that detaches the reporter.
func (r *LogReporter) Attach(m *Monitor) (detach func()) {
	stops := []func(){
		m.OnPipelineBeforeRun().Listen(func(e pipe.BeforeRunEvent) {
			r.logger.Info("pipeline started", "pipeline", e.Pipeline.Title())
		}),
		m.OnPipelineAfterRun().Listen(func(e pipe.AfterRunEvent) {
			if e.Err != nil {
				r.logger.Error("pipeline failed", "pipeline", e.Pipeline.Title(), "error", e.Err)
				return
			}
			r.logger.Info("pipeline finished", "pipeline", e.Pipeline.Title())
		}),
		m.OnPipelineRunWorkUnit().Listen(func(e pipe.RunWorkUnitEvent) {
			r.logger.Debug("starting unit", "pipeline", e.Pipeline.Title(), unitAttrs(e.Unit))
		}),
		m.OnWorkUnitPass().Listen(func(e pipe.PassEvent) {
			r.logger.Info("unit passed", unitAttrs(e.Unit), "elapsed", elapsed(e.Unit))
		}),
		m.OnWorkUnitFail().Listen(func(e pipe.FailEvent) {
			r.logger.Error("unit failed", unitAttrs(e.Unit), "elapsed", elapsed(e.Unit), "error", e.Err)
		}),
		m.OnWorkUnitSkip().Listen(func(e pipe.SkipEvent) {
			if t, ok := e.Unit.(*pipe.Task); ok && !t.HasAction() {
				r.logger.Info("unit skipped", unitAttrs(e.Unit), "reason", "no action")
				return
			}
			r.logger.Info("unit skipped", unitAttrs(e.Unit))
		}),
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

func unitAttrs(u pipe.WorkUnit) slog.Attr {
	return slog.Group("unit",
		slog.String("id", u.ID().String()),
		slog.String("kind", u.Kind().String()),
		slog.String("title", u.Title()),
		slog.Int("depth", u.Depth()),
		slog.String("status", u.Status().String()),
	)
}

func elapsed(u pipe.WorkUnit) time.Duration {
	start, stop := u.StartTime(), u.StopTime()
	if start.IsZero() || stop.Before(start) {
		return 0
	}
	return stop.Sub(start)
}
