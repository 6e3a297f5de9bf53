// Package pipe holds the types shared by the work-unit engine: the WorkUnit
// and Pipeline capabilities, the status state machine, the shared run
// Context, lifecycle events, and the Task leaf unit.
//
// Composite units live in package routine, the four execution strategies
// in package exec, and the tree-wide observer in package monitor.
//
// A unit's run follows one protocol (see Lifecycle.Execute):
//
//	pending -> running -> passed | failed
//	pending -> skipped
//
// Skipped units pass their input through unchanged, so they never break a
// value chain. Action errors are returned exactly as the action produced them.
package pipe
