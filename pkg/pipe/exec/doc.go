// Package exec implements the four ways work units are composed:
//
//   - Serial: fold left, each unit gets the previous output, fail fast.
//   - Parallel: concurrent fan-out with one input, outputs in list order, fail fast.
//   - Pool: concurrent fan-out that waits for every unit and aggregates errors,
//     optionally capped in concurrency.
//   - Synchronize: Pool without a cap.
//
// All strategies pass the same *pipe.Context to every unit and report
// results in list order, never completion order. None of them cancels a unit;
// a unit that never returns stalls its strategy.
package exec
