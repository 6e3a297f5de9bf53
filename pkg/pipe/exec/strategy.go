package exec

import (
	"fmt"
	"strings"

	"github.com/ib-77/workpipe/pkg/pipe"
)

// Strategy names one of the four composition rules.
type Strategy uint8

const (
	StrategySerial Strategy = iota
	StrategyParallel
	StrategyPool
	StrategySynchronize
)

func (s Strategy) String() string {
	switch s {
	case StrategySerial:
		return "serial"
	case StrategyParallel:
		return "parallel"
	case StrategyPool:
		return "pool"
	case StrategySynchronize:
		return "synchronize"
	default:
		return "unknown"
	}
}

// Aggregates reports whether the strategy resolves with a pipe.AggregatedResult.
func (s Strategy) Aggregates() bool {
	return s == StrategyPool || s == StrategySynchronize
}

// ParseStrategy accepts the strategy names and a few common aliases.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "serial", "serialize", "waterfall":
		return StrategySerial, nil
	case "parallel", "parallelize", "concurrent":
		return StrategyParallel, nil
	case "pool", "pooled":
		return StrategyPool, nil
	case "synchronize", "sync", "aggregated":
		return StrategySynchronize, nil
	default:
		return 0, fmt.Errorf("%w: %q", pipe.ErrUnknownStrategy, name)
	}
}

// Run dispatches to the strategy. Serial resolves with the last output,
// Parallel with []any, Pool and Synchronize with pipe.AggregatedResult.
func Run(s Strategy, ctx *pipe.Context, units []pipe.WorkUnit, value any, hook Hook, opts ...PoolOption) (any, error) {
	switch s {
	case StrategySerial:
		return Serial(ctx, units, value, hook)
	case StrategyParallel:
		return Parallel(ctx, units, value, hook)
	case StrategyPool:
		return Pool(ctx, units, value, hook, opts...), nil
	case StrategySynchronize:
		return Synchronize(ctx, units, value, hook), nil
	default:
		return nil, fmt.Errorf("%w: %d", pipe.ErrUnknownStrategy, s)
	}
}
