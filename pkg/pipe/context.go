package pipe

import (
	"context"
	"maps"
	"sync"
)

// Context is the single mutable object shared by every unit of one run.
//
// It is passed by reference and never copied. Children of the concurrent
// strategies run on their own goroutines, so every accessor takes the lock;
// read-modify-write sequences must go through Update or Mutate.
//
// The embedded context.Context is handed to actions untouched. The engine
// never watches it; actions may use it for their own cancellation.
type Context struct {
	context.Context

	mu   sync.RWMutex
	data map[string]any
}

// NewContext creates a Context seeded with a copy of initial.
func NewContext(parent context.Context, initial map[string]any) *Context {
	if parent == nil {
		parent = context.Background()
	}

	data := make(map[string]any, len(initial))
	maps.Copy(data, initial)

	return &Context{Context: parent, data: data}
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.data[key]
	return v, ok
}

// Set stores value under key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = value
}

// Delete removes key.
func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// Update replaces the value under key with fn(old) atomically and returns it.
func (c *Context) Update(key string, fn func(old any, ok bool) any) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	old, ok := c.data[key]
	next := fn(old, ok)
	c.data[key] = next
	return next
}

// Mutate runs fn with exclusive access to the underlying store. fn must not
// retain data or call back into c.
func (c *Context) Mutate(fn func(data map[string]any)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(c.data)
}

// Snapshot returns a shallow copy of the store.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.data)
}

// Lookup returns the value under key converted to T.
func Lookup[T any](c *Context, key string) (T, bool) {
	var zero T

	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}

	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
