package flow

import "sync/atomic"

// Clock stamps trace records with sequence numbers.
// testutil.DeterministicClock satisfies it as well.
type Clock interface {
	Next() int64
}

// LogicalClock is a monotonic logical clock for record ordering.
//
// All records of a tree are stamped with a strictly increasing seq from
// this clock. Wall-clock time is never used for ordering, so replaying the
// same events yields the same sequence numbers.
//
// Thread-safety: safe for concurrent use (atomic operations), although a
// tree only calls Next from its dispatch queue.
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a clock starting at 0.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// Next returns the next sequence number and increments the clock.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}
