// Package flow implements a hierarchical reactive state-machine engine.
//
// A Flow is an immutable definition: an initial state, a pure stepper, a
// set of feedbacks and a render function. A running instance of a flow is a
// node. Nodes form a tree: a render function mounts children by id through
// its RenderContext, and every pass reconciles the new child list against
// the previous one (reuse on a matching id, dispose on a missing one).
//
// ARCHITECTURE:
//
// Single Logical Thread per Tree:
// Every reduction, render pass and reconciliation of a tree runs as a task
// on the tree's dispatch.Queue. Effects may live on other goroutines; their
// Sink.Send hands events to the queue. This ensures:
//   - events of a node are reduced one at a time, in arrival order
//   - a render pass never observes a half-applied transition
//   - re-entrant emissions never grow the call stack
//
// Event Processing Flow:
//  1. An effect, the host (Tree.Send) or a presentation callback
//     (RenderContext.Send / Action) enqueues an event
//  2. The queue drainer delivers it to the node's stepper
//  3. Advance: the state is published; feedback runners re-evaluate their
//     queries (start/cancel effects); a re-render of the tree is requested
//  4. Complete: the output is latched, the node and its subtree are
//     disposed, and the parent's onOutput runs synchronously, feeding the
//     parent's stepper in the same turn
//
// Child completion is the only path that reduces an event outside queue
// order. It is synchronous on purpose: the parent must observe the
// completion before any render can show the dead child again.
//
// Effect failures are isolated per subscription: the subscription ends,
// the failure is logged and reported as a trace record, and the node keeps
// rendering its last state.
package flow
