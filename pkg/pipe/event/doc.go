// Package event provides the small typed listener registries the pipeline
// engine emits its lifecycle transitions through.
//
// Event[T] calls every listener in registration order. BailEvent[T] stops at
// the first listener returning true and tells the emitter so. Both recover
// listener panics and log them instead of propagating them to the emitter.
package event
