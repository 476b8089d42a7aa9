package flow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/flowtree/internal/dispatch"
	"github.com/roach88/flowtree/internal/trace"
)

// Option configures a Tree.
type Option func(*config)

type config struct {
	observer trace.Observer
	clock    Clock
	runIDs   RunIDGenerator
	logger   *slog.Logger
}

// WithObserver reports every trace record of the tree to obs.
func WithObserver(obs trace.Observer) Option {
	return func(c *config) {
		c.observer = obs
	}
}

// WithClock replaces the logical clock used to stamp trace records.
// Use testutil.DeterministicClock for reproducible traces.
func WithClock(clock Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(c *config) {
		c.runIDs = gen
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Tree hosts the root node of a flow and owns the tree's dispatch queue.
//
// Thread-safety model:
//   - Start, Send, Render, Dispose: safe from any goroutine
//   - Render, Start and Dispose wait for the queue; they must NOT be called
//     from a render function, a rendering subscriber or an effect call of
//     the same tree
//   - subscribers and observers are called on whichever goroutine is
//     draining the queue, one at a time
type Tree[I, S, E, O, R any] struct {
	flow *Flow[I, S, E, O, R]
	rt   *treeRuntime

	// Only touched from the dispatch queue.
	root          *node[I, S, E, O, R]
	disposed      bool
	renderPending bool

	mu          sync.Mutex
	subscribers []subscriber[R]
	nextSubID   int
	stopWatch   func() bool

	output    chan O
	done      chan struct{}
	closeDone func()
}

type subscriber[R any] struct {
	id int
	fn func(R)
}

// NewTree creates a tree for f. Nothing runs until Start.
func NewTree[I, S, E, O, R any](f *Flow[I, S, E, O, R], opts ...Option) *Tree[I, S, E, O, R] {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.observer == nil {
		cfg.observer = trace.Discard
	}
	if cfg.clock == nil {
		cfg.clock = NewLogicalClock()
	}
	if cfg.runIDs == nil {
		cfg.runIDs = UUIDv7Generator{}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	runID := cfg.runIDs.Generate()
	t := &Tree[I, S, E, O, R]{
		flow: f,
		rt: &treeRuntime{
			queue:    dispatch.New(),
			clock:    cfg.clock,
			observer: cfg.observer,
			logger:   cfg.logger.With("run_id", runID, "flow", f.name),
			runID:    runID,
		},
		output: make(chan O, 1),
		done:   make(chan struct{}),
	}
	t.rt.requestRender = t.requestRender
	t.closeDone = sync.OnceFunc(func() { close(t.done) })
	return t
}

// RunID returns the id correlating this tree's trace records.
func (t *Tree[I, S, E, O, R]) RunID() string {
	return t.rt.runID
}

// Start creates the root node and computes its first state. The tree is
// bound to ctx: when ctx is done the tree disposes itself, and every effect
// context derives from it.
//
// Returns a RuntimeError with ErrCodeAlreadyStarted on a second call, or
// ErrCodeDisposed after Dispose.
func (t *Tree[I, S, E, O, R]) Start(ctx context.Context, input I) error {
	var err error
	t.do(func() {
		if t.disposed {
			err = newRuntimeError(ErrCodeDisposed, t.flow.name, "tree is disposed")
			return
		}
		if t.root != nil {
			err = newRuntimeError(ErrCodeAlreadyStarted, t.flow.name, "tree is already running")
			return
		}
		t.rt.logger.Info("flow tree starting")
		t.root = newNode(t.rt, ctx, t.flow.name, t.flow.name, t.flow)
		t.root.onOutput = t.emitOutput
		t.root.start(input)
	})
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, t.Dispose)
	t.mu.Lock()
	t.stopWatch = stop
	t.mu.Unlock()
	return nil
}

// Send queues an event for the root node.
func (t *Tree[I, S, E, O, R]) Send(event E) {
	t.rt.queue.EnqueueOrRun(func() {
		if t.root == nil {
			t.rt.logger.Warn("event sent before start, dropped")
			t.rt.record(t.flow.name, trace.KindDrop, event)
			return
		}
		t.root.deliver(event)
	})
}

// Render runs a render pass over the whole tree, publishes the rendering to
// subscribers and returns it. Everything the pass triggers synchronously
// (child completions, the parent transitions they cause) has happened by
// the time Render returns.
func (t *Tree[I, S, E, O, R]) Render() (R, error) {
	var (
		rendering R
		err       error
	)
	t.do(func() {
		rendering, err = t.renderPass()
	})
	return rendering, err
}

// Subscribe registers fn to receive the rendering of every completed render
// pass, whether requested by Render or by a state change. The returned
// function unsubscribes.
func (t *Tree[I, S, E, O, R]) Subscribe(fn func(R)) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSubID++
	id := t.nextSubID
	t.subscribers = append(t.subscribers, subscriber[R]{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.subscribers {
			if s.id == id {
				t.subscribers = append(t.subscribers[:i:i], t.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Output delivers the root's output, at most once.
func (t *Tree[I, S, E, O, R]) Output() <-chan O {
	return t.output
}

// Done is closed when the root completes or the tree is disposed.
func (t *Tree[I, S, E, O, R]) Done() <-chan struct{} {
	return t.done
}

// Dispose tears the whole tree down. Idempotent.
func (t *Tree[I, S, E, O, R]) Dispose() {
	t.do(func() {
		if t.disposed {
			return
		}
		t.disposed = true
		if t.root != nil {
			t.root.dispose()
		}
		t.rt.logger.Info("flow tree disposed")
		t.closeDone()
	})

	t.mu.Lock()
	stop := t.stopWatch
	t.stopWatch = nil
	t.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// do runs fn on the dispatch queue and waits for it.
func (t *Tree[I, S, E, O, R]) do(fn func()) {
	done := make(chan struct{})
	t.rt.queue.EnqueueOrRun(func() {
		defer close(done)
		fn()
	})
	<-done
}

func (t *Tree[I, S, E, O, R]) renderPass() (R, error) {
	t.renderPending = false

	var zero R
	if t.root == nil {
		return zero, newRuntimeError(ErrCodeNotStarted, t.flow.name, "tree rendered before start")
	}
	if !t.root.alive() {
		return zero, newRuntimeError(ErrCodeDisposed, t.flow.name, "tree is no longer running")
	}

	// A completion during the pass changes an ancestor's state and requests
	// another render. Only the settled frame is published.
	rendering := t.root.render()
	for passes := 1; t.renderPending && t.root.alive(); passes++ {
		if passes == maxSettlePasses {
			t.rt.logger.Warn("render did not settle", "passes", passes)
			break
		}
		t.renderPending = false
		rendering = t.root.render()
	}

	t.mu.Lock()
	subs := make([]subscriber[R], len(t.subscribers))
	copy(subs, t.subscribers)
	t.mu.Unlock()
	for _, s := range subs {
		s.fn(rendering)
	}
	return rendering, nil
}

// maxSettlePasses bounds the re-renders of one pass caused by completions
// during rendering.
const maxSettlePasses = 64

// requestRender coalesces re-render requests into one queued pass.
func (t *Tree[I, S, E, O, R]) requestRender() {
	if t.renderPending || t.root == nil || !t.root.alive() {
		return
	}
	t.renderPending = true
	t.rt.queue.EnqueueOrRun(func() {
		if !t.renderPending {
			return
		}
		if _, err := t.renderPass(); err != nil {
			t.rt.logger.Debug("scheduled render skipped", "error", err)
		}
	})
}

func (t *Tree[I, S, E, O, R]) emitOutput(output O) {
	select {
	case t.output <- output:
	default:
	}
	t.rt.logger.Info("flow tree completed")
	t.closeDone()
}
