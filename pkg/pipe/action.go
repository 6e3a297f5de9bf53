package pipe

import "reflect"

// Action is the work a Task performs: it receives the shared context and the
// previous stage's output and returns the next value.
type Action func(ctx *Context, value any) (any, error)

// ScopedAction receives the object it is bound to as an explicit argument.
type ScopedAction[S any] func(scope S, ctx *Context, value any) (any, error)

// Bind captures scope so the resulting Action reads its implicit state from it.
func Bind[S any](scope S, fn ScopedAction[S]) Action {
	if fn == nil {
		return nil
	}
	return func(ctx *Context, value any) (any, error) {
		return fn(scope, ctx, value)
	}
}

// Typed adapts a function over concrete types into an Action. A nil input is
// passed as the zero value of In.
func Typed[In, Out any](fn func(ctx *Context, value In) (Out, error)) Action {
	if fn == nil {
		return nil
	}
	return func(ctx *Context, value any) (any, error) {
		in, err := As[In](value)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
}

// As converts value to T, treating nil as the zero value.
func As[T any](value any) (T, error) {
	var zero T
	if value == nil {
		return zero, nil
	}

	v, ok := value.(T)
	if !ok {
		return zero, &TypeError{Want: reflect.TypeFor[T]().String(), Got: value}
	}
	return v, nil
}
