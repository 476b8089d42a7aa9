package flow

import (
	"context"
	"fmt"

	"github.com/roach88/flowtree/internal/trace"
)

// child is the type-erased view a parent has of its children. Children of
// one parent run flows with unrelated type parameters.
type child interface {
	childID() string
	definition() any
	alive() bool
	dispose()
}

// node is one running instance of a flow.
//
// CRITICAL: every method runs on the tree's dispatch queue. The state is
// owned by the node; only renderings leave it.
type node[I, S, E, O, R any] struct {
	id   string
	path string
	flow *Flow[I, S, E, O, R]
	rt   *treeRuntime

	parentCtx context.Context
	ctx       context.Context
	cancel    context.CancelFunc

	state     S
	started   bool
	completed bool
	dead      bool

	runners  []feedbackRunner[S]
	children []child

	// onOutput is replaced by the parent on every render pass: the previous
	// closure may capture stale parent state.
	onOutput func(O)
}

func newNode[I, S, E, O, R any](rt *treeRuntime, parentCtx context.Context, id, path string, f *Flow[I, S, E, O, R]) *node[I, S, E, O, R] {
	return &node[I, S, E, O, R]{
		id:        id,
		path:      path,
		flow:      f,
		rt:        rt,
		parentCtx: parentCtx,
	}
}

// start computes the first state and starts the feedbacks with it.
// Starting twice is a programming error.
func (n *node[I, S, E, O, R]) start(input I) {
	if n.started {
		panic(newRuntimeError(ErrCodeAlreadyStarted, n.path, "node is already running"))
	}
	n.started = true
	n.ctx, n.cancel = context.WithCancel(n.parentCtx)

	n.state = n.flow.initial(input)
	n.rt.record(n.path, trace.KindState, n.state)

	n.runners = make([]feedbackRunner[S], 0, len(n.flow.feedbacks))
	for _, fb := range n.flow.feedbacks {
		n.runners = append(n.runners, fb.newRunner(n))
	}
	n.publish(true)
}

// publish makes the current state visible to the feedbacks and, except for
// the first state, asks the tree for a new render pass. The first state is
// rendered synchronously by whoever started the node.
func (n *node[I, S, E, O, R]) publish(first bool) {
	for _, r := range n.runners {
		if n.dead {
			return
		}
		r.update(n.state)
	}
	if !first {
		n.rt.requestRender()
	}
}

// deliver reduces one event.
func (n *node[I, S, E, O, R]) deliver(event E) {
	if n.dead || n.completed {
		n.rt.record(n.path, trace.KindDrop, event)
		return
	}

	step := n.flow.stepper(n.state, event)
	if step.complete {
		n.finish(step.output)
		return
	}

	n.state = step.state
	n.rt.record(n.path, trace.KindState, n.state)
	n.publish(false)
}

// send queues an event for this node.
func (n *node[I, S, E, O, R]) send(event E) {
	n.rt.queue.EnqueueOrRun(func() {
		n.deliver(event)
	})
}

// finish emits the output exactly once: the subtree is disposed first, then
// the parent's callback runs on the same turn.
func (n *node[I, S, E, O, R]) finish(output O) {
	n.completed = true
	n.rt.record(n.path, trace.KindOutput, output)

	onOutput := n.onOutput
	n.dispose()
	if onOutput != nil {
		onOutput(output)
	}
}

// render runs the render function and reconciles the children it mounted.
func (n *node[I, S, E, O, R]) render() R {
	if !n.started {
		panic(newRuntimeError(ErrCodeNotStarted, n.path, "node rendered before start"))
	}

	ctx := newRenderContext[E, O](n)
	var rendering R
	if n.flow.render != nil {
		rendering = n.flow.render(n.state, ctx)
	}
	ctx.scope.closed = true

	n.reconcile(ctx.scope.encountered)
	n.rt.record(n.path, trace.KindRender, nil)

	if ctx.completing && !n.dead && !n.completed {
		n.finish(ctx.output)
	}
	return rendering
}

// reconcile disposes previous children the pass did not encounter and keeps
// the encountered ones, in first-encounter order.
func (n *node[I, S, E, O, R]) reconcile(encountered []child) {
	if n.dead {
		// A child's output completed this node mid-pass.
		for _, c := range encountered {
			c.dispose()
		}
		n.children = nil
		return
	}

	keep := make(map[child]struct{}, len(encountered))
	for _, c := range encountered {
		keep[c] = struct{}{}
	}
	for _, c := range n.children {
		if _, ok := keep[c]; !ok {
			c.dispose()
		}
	}

	live := make([]child, 0, len(encountered))
	for _, c := range encountered {
		if c.alive() {
			live = append(live, c)
		}
	}
	n.children = live
}

// dispose cancels feedbacks, disposes children and marks the node dead.
// Idempotent.
func (n *node[I, S, E, O, R]) dispose() {
	if n.dead {
		return
	}
	n.dead = true

	for _, r := range n.runners {
		r.stop()
	}
	for _, c := range n.children {
		c.dispose()
	}
	n.children = nil
	if n.cancel != nil {
		n.cancel()
	}
	n.rt.record(n.path, trace.KindDispose, nil)
}

func (n *node[I, S, E, O, R]) childID() string { return n.id }

func (n *node[I, S, E, O, R]) definition() any { return n.flow }

func (n *node[I, S, E, O, R]) alive() bool { return !n.dead }

// childIDs lists the current children, in order.
func (n *node[I, S, E, O, R]) childIDs() []string {
	ids := make([]string, len(n.children))
	for i, c := range n.children {
		ids[i] = c.childID()
	}
	return ids
}

func (n *node[I, S, E, O, R]) effectContext() context.Context {
	return n.ctx
}

func (n *node[I, S, E, O, R]) effectStarted(sub *subscription, query any) {
	n.rt.recordDetail(n.path, trace.KindEffectStart, query, sub.feedback+"("+sub.key+")")
}

func (n *node[I, S, E, O, R]) effectCancelled(sub *subscription) {
	n.rt.recordDetail(n.path, trace.KindEffectCancel, nil, sub.feedback+"("+sub.key+")")
}

// effectEvent may be called from any goroutine.
func (n *node[I, S, E, O, R]) effectEvent(sub *subscription, event E) {
	n.rt.queue.EnqueueOrRun(func() {
		if sub.ended.Load() {
			n.rt.record(n.path, trace.KindDrop, event)
			return
		}
		n.deliver(event)
	})
}

// effectFailed may be called from any goroutine.
func (n *node[I, S, E, O, R]) effectFailed(sub *subscription, err error) {
	ee := &EffectError{
		Path:     n.path,
		Feedback: sub.feedback,
		Query:    sub.key,
		Err:      err,
	}
	n.rt.queue.EnqueueOrRun(func() {
		n.rt.logger.Warn("effect failed",
			"path", n.path,
			"feedback", sub.feedback,
			"query", sub.key,
			"error", err,
		)
		n.rt.recordDetail(n.path, trace.KindEffectFail, ee,
			fmt.Sprintf("%s(%s): %v", sub.feedback, sub.key, err))
	})
}
