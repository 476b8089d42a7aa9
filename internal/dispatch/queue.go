// Package dispatch serializes re-entrant work into a single logical thread
// of execution.
//
// A Queue has at most one drainer at a time. Whoever calls EnqueueOrRun
// while the queue is idle becomes the drainer and keeps running tasks,
// including the ones enqueued by the tasks themselves, until the queue is
// empty. Re-entrant calls never recurse: they append and return.
package dispatch

import "sync"

// Queue is a FIFO trampoline for tasks.
//
// Thread-safety model:
//   - EnqueueOrRun(): safe from any goroutine
//   - tasks never run concurrently with each other
//
// INVARIANTS:
//   - tasks run in exactly the order they were enqueued
//   - call-stack depth of the drainer is independent of queue length
type Queue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		tasks: make([]func(), 0, 16),
	}
}

// EnqueueOrRun appends task and, if no task is currently executing, drains
// the queue on the calling goroutine before returning.
//
// Returns true if this call drained the queue (so task has run by the time
// it returns), false if another drain was in progress and the task was only
// queued.
func (q *Queue) EnqueueOrRun(task func()) bool {
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	if q.running {
		q.mu.Unlock()
		return false
	}
	q.running = true
	q.mu.Unlock()

	q.drain()
	return true
}

// drain runs queued tasks until none are left.
// A panicking task gives up the drainer role; remaining tasks stay queued
// for the next caller.
func (q *Queue) drain() {
	finished := false
	defer func() {
		if !finished {
			q.mu.Lock()
			q.running = false
			q.mu.Unlock()
		}
	}()

	for {
		task, ok := q.next()
		if !ok {
			finished = true
			return
		}
		task()
	}
}

// next pops the front task, releasing the drainer role when empty.
func (q *Queue) next() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		q.running = false
		return nil, false
	}

	task := q.tasks[0]

	// Nil out the slot so the closure (and whatever it captured) can be
	// collected before the backing array is reallocated.
	q.tasks[0] = nil

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return task, true
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Running reports whether a drain is in progress.
func (q *Queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
