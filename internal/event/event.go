// SPDX-License-Identifier: MPL-2.0

package event

import (
	"context"
	"sync"
)

type (
	// Channel is a set of one-shot cells keyed by id. Each cell is resolved
	// at most once; listeners registered before resolution run exactly once
	// when it happens, listeners registered after run immediately.
	// A Channel is safe for concurrent use.
	Channel[T any] struct {
		mu    sync.Mutex
		cells map[string]*cell[T]
	}

	cell[T any] struct {
		resolved bool
		value    T
		waiters  []func(T)
		done     chan struct{}
	}
)

// New creates an empty channel.
func New[T any]() *Channel[T] {
	return &Channel[T]{cells: make(map[string]*cell[T])}
}

// cellLocked returns the cell for id, creating it. Callers hold c.mu.
func (c *Channel[T]) cellLocked(id string) *cell[T] {
	cl, ok := c.cells[id]
	if !ok {
		cl = &cell[T]{done: make(chan struct{})}
		c.cells[id] = cl
	}
	return cl
}

// Resolve resolves the cell for id with v and runs its listeners in
// registration order. It returns false, and does nothing, when the cell
// was already resolved.
func (c *Channel[T]) Resolve(id string, v T) bool {
	c.mu.Lock()
	cl := c.cellLocked(id)
	if cl.resolved {
		c.mu.Unlock()
		return false
	}
	cl.resolved = true
	cl.value = v
	waiters := cl.waiters
	cl.waiters = nil
	close(cl.done)
	c.mu.Unlock()

	for _, fn := range waiters {
		fn(v)
	}
	return true
}

// Once runs fn with the value of id: immediately when resolved, otherwise
// on resolution. It reports whether fn ran immediately.
func (c *Channel[T]) Once(id string, fn func(T)) bool {
	c.mu.Lock()
	cl := c.cellLocked(id)
	if !cl.resolved {
		cl.waiters = append(cl.waiters, fn)
		c.mu.Unlock()
		return false
	}
	v := cl.value
	c.mu.Unlock()

	fn(v)
	return true
}

// Value returns the value of id and whether it has been resolved.
func (c *Channel[T]) Value(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.cells[id]; ok && cl.resolved {
		return cl.value, true
	}
	var zero T
	return zero, false
}

// Wait blocks until id is resolved or ctx is done.
func (c *Channel[T]) Wait(ctx context.Context, id string) (T, error) {
	c.mu.Lock()
	cl := c.cellLocked(id)
	done := cl.done
	c.mu.Unlock()

	select {
	case <-done:
		c.mu.Lock()
		v := cl.value
		c.mu.Unlock()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Pending returns the number of listeners waiting on id.
func (c *Channel[T]) Pending(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cl, ok := c.cells[id]; ok {
		return len(cl.waiters)
	}
	return 0
}
