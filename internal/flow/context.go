package flow

import (
	"context"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/flowtree/internal/trace"
)

// scope is the untyped part of a render pass: which children existed
// before, which ones this pass has mounted so far.
type scope struct {
	rt          *treeRuntime
	ctx         context.Context
	path        string
	previous    []child
	encountered []child
	seen        map[string]struct{}
	closed      bool
}

// lookup finds a live child of the previous pass by id.
func (s *scope) lookup(id string) child {
	for _, c := range s.previous {
		if c.childID() == id && c.alive() {
			return c
		}
	}
	return nil
}

// RenderContext is handed to a render function. It exists for exactly one
// render invocation of one node: Mount and Complete panic once the render
// function has returned. Send and Action stay usable afterwards, since
// presentation callbacks fire later; events reaching a dead node are
// dropped.
type RenderContext[E, O any] struct {
	scope   *scope
	send    func(E)
	deliver func(E)

	completing bool
	output     O
}

func newRenderContext[E, O any, I, S, R any](n *node[I, S, E, O, R]) *RenderContext[E, O] {
	return &RenderContext[E, O]{
		scope: &scope{
			rt:       n.rt,
			ctx:      n.ctx,
			path:     n.path,
			previous: n.children,
			seen:     make(map[string]struct{}),
		},
		send:    n.send,
		deliver: n.deliver,
	}
}

// Path returns the path of the node being rendered, e.g. "wizard/counter".
func (c *RenderContext[E, O]) Path() string {
	return c.scope.path
}

// Send queues an event for the node being rendered.
func (c *RenderContext[E, O]) Send(event E) {
	c.send(event)
}

// Action returns a callback that sends event, for wiring into a rendering
// (a button handler, say).
func (c *RenderContext[E, O]) Action(event E) func() {
	return func() {
		c.send(event)
	}
}

// Complete asks for the node to complete with output once its render
// function returns. The first call wins.
func (c *RenderContext[E, O]) Complete(output O) {
	if c.scope.closed {
		panic(newRuntimeError(ErrCodeContextClosed, c.scope.path, "Complete called after render returned"))
	}
	if c.completing {
		return
	}
	c.completing = true
	c.output = output
}

// Mount renders a child flow under id and returns its rendering.
//
// If the previous pass had a live child with this id it is reused: its
// onOutput is replaced, its state is kept. Otherwise a new node is started
// with input. An empty id defaults to the flow's name. Children the pass
// does not mount again are disposed after the render function returns.
//
// onOutput maps the child's output to an event of the parent, which is
// reduced synchronously when the child completes. A nil onOutput ignores
// the output.
//
// Panics with a RuntimeError when the id was already mounted in this pass
// (DUPLICATE_ID), when the previous child under id runs another flow
// (FLOW_MISMATCH), or after the render function returned (CONTEXT_CLOSED).
func Mount[PE, PO, CI, CS, CE, CO, CR any](
	ctx *RenderContext[PE, PO],
	id string,
	f *Flow[CI, CS, CE, CO, CR],
	input CI,
	onOutput func(CO) PE,
) CR {
	sc := ctx.scope
	if sc.closed {
		panic(newRuntimeError(ErrCodeContextClosed, sc.path, "Mount called after render returned"))
	}
	if id == "" {
		id = f.name
	}
	id = norm.NFC.String(id)

	if _, dup := sc.seen[id]; dup {
		panic(newRuntimeError(ErrCodeDuplicateID, sc.path, "child id %q mounted twice in one pass", id))
	}
	sc.seen[id] = struct{}{}

	deliver := ctx.deliver
	forward := func(output CO) {
		if onOutput != nil {
			deliver(onOutput(output))
		}
	}

	if prev := sc.lookup(id); prev != nil {
		if prev.definition() != any(f) {
			panic(&RuntimeError{
				Code:    ErrCodeFlowMismatch,
				Message: "child id remounted with a different flow",
				Path:    sc.path + "/" + id,
				Details: map[string]string{"flow": f.name},
			})
		}
		n := prev.(*node[CI, CS, CE, CO, CR])
		n.onOutput = forward
		sc.encountered = append(sc.encountered, n)
		sc.rt.record(n.path, trace.KindReuse, nil)
		return n.render()
	}

	n := newNode(sc.rt, sc.ctx, id, sc.path+"/"+id, f)
	n.onOutput = forward
	sc.encountered = append(sc.encountered, n)
	sc.rt.record(n.path, trace.KindMount, nil)
	n.start(input)
	return n.render()
}
