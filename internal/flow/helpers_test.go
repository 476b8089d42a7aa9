package flow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/testutil"
	"github.com/roach88/flowtree/internal/trace"
)

type counterEvent int

const (
	increment counterEvent = iota
	decrement
	backPressed
)

func (e counterEvent) String() string {
	switch e {
	case increment:
		return "increment"
	case decrement:
		return "decrement"
	case backPressed:
		return "back"
	}
	return "unknown"
}

type counterView struct {
	Count int
	Send  func(counterEvent)
	Inc   func()
}

type counterDef = Flow[int, int, counterEvent, struct{}, counterView]

func counterStep(n int, e counterEvent) Step[int, struct{}] {
	switch e {
	case increment:
		return Advance[int, struct{}](n + 1)
	case decrement:
		return Advance[int, struct{}](max(0, n-1))
	default:
		return Complete[int](struct{}{})
	}
}

func renderCounter(n int, ctx *RenderContext[counterEvent, struct{}]) counterView {
	return counterView{Count: n, Send: ctx.Send, Inc: ctx.Action(increment)}
}

var counterFlow = Must(New(Definition[int, int, counterEvent, struct{}, counterView]{
	Name:         "counter",
	InitialState: func(n int) int { return n },
	Stepper:      counterStep,
	Render:       renderCounter,
}))

// probe captures the sink and context of the latest effect it started.
type probe struct {
	mu     sync.Mutex
	ctx    context.Context
	sink   Sink[counterEvent]
	starts int
}

func (p *probe) effect(ctx context.Context, _ bool, sink Sink[counterEvent]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx = ctx
	p.sink = sink
	p.starts++
}

func (p *probe) latest() (context.Context, Sink[counterEvent]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx, p.sink
}

func newProbedCounter(p *probe) *counterDef {
	return Must(New(Definition[int, int, counterEvent, struct{}, counterView]{
		Name:         "probed",
		InitialState: func(n int) int { return n },
		Stepper:      counterStep,
		Feedbacks: []Feedback[int, counterEvent]{
			React("probe", func(int) (bool, bool) { return true, true }, p.effect),
		},
		Render: renderCounter,
	}))
}

// hostEvent either replaces the list of mounted child ids or completes the
// host.
type hostEvent struct {
	Set    []string
	Finish string
}

type hostDef = Flow[[]string, []string, hostEvent, string, map[string]counterView]

// newHost builds a parent that mounts one child per id in its state, in
// order. pick chooses the child flow for an id. When forward is set a
// child's output removes it from the state; otherwise outputs are ignored.
func newHost(name string, pick func(id string) *counterDef, forward bool) *hostDef {
	return Must(New(Definition[[]string, []string, hostEvent, string, map[string]counterView]{
		Name:         name,
		InitialState: func(ids []string) []string { return ids },
		Stepper: func(_ []string, e hostEvent) Step[[]string, string] {
			if e.Finish != "" {
				return Complete[[]string](e.Finish)
			}
			return Advance[[]string, string](e.Set)
		},
		Render: func(ids []string, ctx *RenderContext[hostEvent, string]) map[string]counterView {
			views := make(map[string]counterView, len(ids))
			for _, id := range ids {
				var onOutput func(struct{}) hostEvent
				if forward {
					onOutput = func(struct{}) hostEvent {
						return hostEvent{Set: without(ids, id)}
					}
				}
				views[id] = Mount(ctx, id, pick(id), 0, onOutput)
			}
			return views
		},
	}))
}

func counters(string) *counterDef { return counterFlow }

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func testOptions(rec *trace.Recorder) []Option {
	return []Option{
		WithObserver(rec),
		WithClock(testutil.NewDeterministicClock()),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("test-run")),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
}

// startTree starts a tree for f with deterministic options and disposes it
// at the end of the test.
func startTree[I, S, E, O, R any](t *testing.T, f *Flow[I, S, E, O, R], input I, rec *trace.Recorder, opts ...Option) *Tree[I, S, E, O, R] {
	t.Helper()
	tree := NewTree(f, append(testOptions(rec), opts...)...)
	require.NoError(t, tree.Start(context.Background(), input))
	t.Cleanup(tree.Dispose)
	return tree
}

// panicCode runs fn and returns the code of the RuntimeError it panics with.
func panicCode(t *testing.T, fn func()) (code ErrorCode) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		var re *RuntimeError
		require.True(t, errors.As(err, &re), "panic value %v is not a RuntimeError", err)
		code = re.Code
	}()
	fn()
	return ""
}

// indexOf returns the position of the first record matching kind and path.
func indexOf(records []trace.Record, kind trace.Kind, path string) int {
	for i, r := range records {
		if r.Kind == kind && r.Path == path {
			return i
		}
	}
	return -1
}

// childIDsOf reads the root's children on the dispatch queue.
func childIDsOf[I, S, E, O, R any](tree *Tree[I, S, E, O, R]) []string {
	var ids []string
	tree.do(func() {
		ids = tree.root.childIDs()
	})
	return ids
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
