package state

import "sync"

// Cell is a single observable value. Subscribers are invoked synchronously,
// in registration order, on every mutation; there is no batching and no
// delivery queue, so an observer always sees the value it was called with.
type Cell[T any] struct {
	mu          sync.Mutex
	value       T
	subscribers []func(T)
}

func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value and notifies subscribers.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	c.value = value
	subs := append([]func(T){}, c.subscribers...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Update applies fn to the current value under the lock, then notifies.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	c.value = fn(c.value)
	value := c.value
	subs := append([]func(T){}, c.subscribers...)
	c.mu.Unlock()

	for _, s := range subs {
		s(value)
	}
	return value
}

// Subscribe registers an observer. It is not invoked with the current
// value; callers that need it read Get first.
func (c *Cell[T]) Subscribe(fn func(T)) {
	c.mu.Lock()
	c.subscribers = append(c.subscribers, fn)
	c.mu.Unlock()
}
