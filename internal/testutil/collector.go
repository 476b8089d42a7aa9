package testutil

import (
	"sync"
	"testing"
	"time"
)

// Collector gathers values pushed from arbitrary goroutines, typically
// renderings delivered to a tree subscriber, and lets a test wait for one.
type Collector[T any] struct {
	mu     sync.Mutex
	values []T
	signal chan struct{}
}

// NewCollector creates an empty collector.
func NewCollector[T any]() *Collector[T] {
	return &Collector[T]{signal: make(chan struct{}, 1)}
}

// Add records v. Safe for concurrent use; usable directly as a subscriber.
func (c *Collector[T]) Add(v T) {
	c.mu.Lock()
	c.values = append(c.values, v)
	c.mu.Unlock()

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Values returns a copy of everything collected.
func (c *Collector[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.values))
	copy(out, c.values)
	return out
}

// Len returns the number of collected values.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// WaitFor blocks until some collected value satisfies match, failing the
// test after timeout.
func (c *Collector[T]) WaitFor(t testing.TB, timeout time.Duration, match func(T) bool) T {
	t.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		for _, v := range c.Values() {
			if match(v) {
				return v
			}
		}
		select {
		case <-c.signal:
		case <-deadline.C:
			t.Fatalf("no matching value collected within %v (have %d values)", timeout, c.Len())
			var zero T
			return zero
		}
	}
}
