// Package routine provides Routine, a work unit that owns tasks and nested
// routines and decides in its body how they are composed.
//
// A routine is assembled with Add, Pipe and Task and becomes read-only the
// moment it starts running. Its body receives an Executor bound to the
// routine's own children:
//
//	r := routine.MustNew("build", "Build", routine.WithExecute(
//		func(ctx *pipe.Context, value any, x routine.Executor) (any, error) {
//			out, err := x.SerializeTasks(ctx, value)
//			if err != nil {
//				return nil, err
//			}
//			return x.ParallelizeRoutines(ctx, out)
//		}))
package routine
