// Package pipeline provides root containers that run a flat list of work
// units with one fixed strategy:
//
//	Waterfall   serial, each unit gets the previous output
//	Concurrent  parallel, outputs in list order
//	Pooled      pool with an optional concurrency cap and LIFO order
//	Aggregated  synchronize, waits for everything and collects errors
//
// A pipeline owns the context and the initial value it was created with.
package pipeline
