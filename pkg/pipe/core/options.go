package core

import "context"

type OptionKey string

const (
	ScheduleOptionKey OptionKey = "schedule_options"
	WorkerOptionKey   OptionKey = "worker_options"
)

type MaxLimitOption struct {
	Value int
}

type WorkerOptions struct {
	MaxCount MaxLimitOption
}

type ScheduleOptions struct {
	// LIFO starts the last selected unit first.
	LIFO bool
}

func WithScheduleOptions(ctx context.Context, lifo bool) context.Context {
	return context.WithValue(ctx, ScheduleOptionKey, ScheduleOptions{LIFO: lifo})
}

// WithWorkerOptions caps how many units a pool runs at once. A value <= 0
// means no cap.
func WithWorkerOptions(ctx context.Context, maxWorkers int) context.Context {
	return context.WithValue(ctx, WorkerOptionKey, WorkerOptions{MaxLimitOption{Value: maxWorkers}})
}

func GetWorkerMaxCount(ctx context.Context, defaultMaxWorkers int) int {
	if ctx == nil {
		return defaultMaxWorkers
	}
	options, ok := ctx.Value(WorkerOptionKey).(WorkerOptions)
	if ok {
		return options.MaxCount.Value
	}
	return defaultMaxWorkers
}

func IsLIFOEnabled(ctx context.Context, defaultLIFO bool) bool {
	if ctx == nil {
		return defaultLIFO
	}
	options, ok := ctx.Value(ScheduleOptionKey).(ScheduleOptions)
	if ok {
		return options.LIFO
	}
	return defaultLIFO
}
