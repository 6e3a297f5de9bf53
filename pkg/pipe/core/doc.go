// Package core contains scheduling plumbing for the execution strategies:
// worker and ordering options carried by a context, slot feeders, and the
// locomotive loop that drives a bounded set of workers. It holds no pipeline
// semantics of its own.
package core
