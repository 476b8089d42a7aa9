package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/trace"
)

func TestMount_ReuseKeepsState(t *testing.T) {
	rec := trace.NewRecorder()
	tree := startTree(t, newHost("host", counters, true), []string{"a"}, rec)

	views, err := tree.Render()
	require.NoError(t, err)
	assert.Equal(t, 0, views["a"].Count)

	views["a"].Send(increment)
	views["a"].Inc()

	views, err = tree.Render()
	require.NoError(t, err)
	assert.Equal(t, 2, views["a"].Count)
	assert.Equal(t, 1, rec.Count(trace.KindMount, "host/a"))
	assert.GreaterOrEqual(t, rec.Count(trace.KindReuse, "host/a"), 1)
	assert.Equal(t, []any{0, 1, 2}, rec.Values(trace.KindState, "host/a"))
}

func TestMount_ChildCompletionDrivesParent(t *testing.T) {
	rec := trace.NewRecorder()
	tree := startTree(t, newHost("host", counters, true), []string{"a", "b"}, rec)

	views, err := tree.Render()
	require.NoError(t, err)

	views["a"].Send(backPressed)

	// By the time Send returns the child is gone and the parent has moved.
	records := rec.Records()
	output := indexOf(records, trace.KindOutput, "host/a")
	disposed := indexOf(records, trace.KindDispose, "host/a")
	require.GreaterOrEqual(t, output, 0)
	assert.Less(t, output, disposed)

	states := rec.Filter(trace.KindState, "host")
	require.Len(t, states, 2)
	assert.Equal(t, []string{"b"}, states[1].Value)
	assert.Less(t, records[disposed].Seq, states[1].Seq)

	views, err = tree.Render()
	require.NoError(t, err)
	assert.NotContains(t, views, "a")
	assert.Contains(t, views, "b")
	assert.Equal(t, []string{"b"}, childIDsOf(tree))
	assert.Equal(t, 1, rec.Count(trace.KindDispose, "host/a"))
}

func TestMount_RemovedChildIsDisposed(t *testing.T) {
	rec := trace.NewRecorder()
	p := &probe{}
	child := newProbedCounter(p)
	tree := startTree(t, newHost("host", func(string) *counterDef { return child }, true), []string{"a"}, rec)

	_, err := tree.Render()
	require.NoError(t, err)
	ctx, sink := p.latest()
	require.NoError(t, ctx.Err())

	tree.Send(hostEvent{Set: nil})

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, 1, rec.Count(trace.KindDispose, "host/a"))
	assert.Equal(t, []string{"probe(true)"}, rec.Details(trace.KindEffectCancel, "host/a"))
	assert.Empty(t, childIDsOf(tree))

	// The probe's effect can no longer reach the node.
	sink.Send(increment)
	assert.Equal(t, []any{0}, rec.Values(trace.KindState, "host/a"))
	assert.Equal(t, 1, p.starts)
}

func TestMount_ChildOrderFollowsRender(t *testing.T) {
	rec := trace.NewRecorder()
	tree := startTree(t, newHost("host", counters, true), []string{"a", "b", "c"}, rec)

	_, err := tree.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, childIDsOf(tree))

	tree.Send(hostEvent{Set: []string{"c", "a"}})

	assert.Equal(t, []string{"c", "a"}, childIDsOf(tree))
	assert.Equal(t, 1, rec.Count(trace.KindMount, "host/a"))
	assert.Equal(t, 1, rec.Count(trace.KindMount, "host/c"))
	assert.Equal(t, 1, rec.Count(trace.KindDispose, "host/b"))
	assert.Equal(t, 0, rec.Count(trace.KindDispose, "host/a"))
}

func TestMount_ReaddedIDStartsFresh(t *testing.T) {
	rec := trace.NewRecorder()
	tree := startTree(t, newHost("host", counters, true), []string{"a"}, rec)

	views, err := tree.Render()
	require.NoError(t, err)
	views["a"].Send(increment)

	tree.Send(hostEvent{Set: nil})
	tree.Send(hostEvent{Set: []string{"a"}})

	views, err = tree.Render()
	require.NoError(t, err)
	assert.Equal(t, 0, views["a"].Count)
	assert.Equal(t, 2, rec.Count(trace.KindMount, "host/a"))
}

func TestMount_IgnoredOutputRemountsCompletedChild(t *testing.T) {
	rec := trace.NewRecorder()
	tree := startTree(t, newHost("host", counters, false), []string{"a"}, rec)

	views, err := tree.Render()
	require.NoError(t, err)
	views["a"].Send(increment)
	views["a"].Send(backPressed)

	// The host never changed state, so the next pass mounts "a" again.
	assert.Equal(t, []any{[]string{"a"}}, rec.Values(trace.KindState, "host"))
	views, err = tree.Render()
	require.NoError(t, err)
	assert.Equal(t, 0, views["a"].Count)
	assert.Equal(t, 2, rec.Count(trace.KindMount, "host/a"))
}

func TestMount_RenderTimeCompletePropagatesSynchronously(t *testing.T) {
	rec := trace.NewRecorder()
	eager := Must(New(Definition[int, int, counterEvent, struct{}, counterView]{
		Name:         "eager",
		InitialState: func(n int) int { return n },
		Stepper:      counterStep,
		Render: func(n int, ctx *RenderContext[counterEvent, struct{}]) counterView {
			ctx.Complete(struct{}{})
			return counterView{Count: n}
		},
	}))
	tree := startTree(t, newHost("host", func(string) *counterDef { return eager }, true), []string{"e"}, rec)

	var frames []map[string]counterView
	cancel := tree.Subscribe(func(views map[string]counterView) {
		frames = append(frames, views)
	})
	defer cancel()

	views, err := tree.Render()
	require.NoError(t, err)

	// The host reacted to the completion before Render returned, and only
	// the frame rendered after that reaction is published.
	assert.NotContains(t, views, "e")
	require.Len(t, frames, 1)
	assert.NotContains(t, frames[0], "e")
	assert.Equal(t, 2, rec.Count(trace.KindRender, "host"))
	assert.Equal(t, 1, rec.Count(trace.KindOutput, "host/e"))
	assert.Equal(t, 1, rec.Count(trace.KindDispose, "host/e"))
	hostStates := rec.Values(trace.KindState, "host")
	require.Len(t, hostStates, 2)
	assert.Empty(t, hostStates[1])
	assert.Empty(t, childIDsOf(tree))
}

func TestRenderContext_CompleteFirstCallWins(t *testing.T) {
	f := Must(New(Definition[int, int, counterEvent, string, string]{
		Name:         "once",
		InitialState: func(n int) int { return n },
		Stepper: func(n int, _ counterEvent) Step[int, string] {
			return Advance[int, string](n)
		},
		Render: func(_ int, ctx *RenderContext[counterEvent, string]) string {
			ctx.Complete("first")
			ctx.Complete("second")
			return "rendered"
		},
	}))
	rec := trace.NewRecorder()
	tree := startTree(t, f, 0, rec)

	view, err := tree.Render()
	require.NoError(t, err)
	assert.Equal(t, "rendered", view)
	assert.Equal(t, "first", <-tree.Output())
	assert.Equal(t, 1, rec.Count(trace.KindOutput, "once"))
}

func TestRenderContext_ClosedAfterRender(t *testing.T) {
	var captured *RenderContext[counterEvent, string]
	f := Must(New(Definition[int, int, counterEvent, string, string]{
		Name:         "leaky",
		InitialState: func(n int) int { return n },
		Stepper: func(n int, _ counterEvent) Step[int, string] {
			return Advance[int, string](n + 1)
		},
		Render: func(_ int, ctx *RenderContext[counterEvent, string]) string {
			captured = ctx
			return ctx.Path()
		},
	}))
	rec := trace.NewRecorder()
	tree := startTree(t, f, 0, rec)

	path, err := tree.Render()
	require.NoError(t, err)
	assert.Equal(t, "leaky", path)

	assert.Equal(t, ErrCodeContextClosed, panicCode(t, func() { captured.Complete("late") }))
	assert.Equal(t, ErrCodeContextClosed, panicCode(t, func() {
		Mount(captured, "child", counterFlow, 0, nil)
	}))

	// Send stays usable for callbacks that fire later.
	captured.Send(increment)
	assert.Equal(t, []any{0, 1}, rec.Values(trace.KindState, "leaky"))
}

func TestMount_DuplicateIDPanics(t *testing.T) {
	f := Must(New(Definition[int, int, counterEvent, string, string]{
		Name:         "twins",
		InitialState: func(n int) int { return n },
		Stepper: func(n int, _ counterEvent) Step[int, string] {
			return Advance[int, string](n)
		},
		Render: func(_ int, ctx *RenderContext[counterEvent, string]) string {
			Mount(ctx, "same", counterFlow, 0, nil)
			Mount(ctx, "same", counterFlow, 0, nil)
			return ""
		},
	}))
	tree := startTree(t, f, 0, trace.NewRecorder())

	assert.Equal(t, ErrCodeDuplicateID, panicCode(t, func() { _, _ = tree.Render() }))
}

func TestMount_FlowMismatchPanics(t *testing.T) {
	other := Must(New(Definition[int, int, counterEvent, struct{}, counterView]{
		Name:         "other",
		InitialState: func(n int) int { return n },
		Stepper:      counterStep,
		Render:       renderCounter,
	}))
	swap := false
	pick := func(string) *counterDef {
		if swap {
			return other
		}
		return counterFlow
	}
	tree := startTree(t, newHost("host", pick, true), []string{"a"}, trace.NewRecorder())

	_, err := tree.Render()
	require.NoError(t, err)

	swap = true
	assert.Equal(t, ErrCodeFlowMismatch, panicCode(t, func() { _, _ = tree.Render() }))
}

func TestMount_DefaultIDIsFlowName(t *testing.T) {
	rec := trace.NewRecorder()
	tree := startTree(t, newHost("host", counters, true), []string{""}, rec)

	_, err := tree.Render()
	require.NoError(t, err)

	assert.Equal(t, 1, rec.Count(trace.KindMount, "host/counter"))
	assert.Equal(t, []string{"counter"}, childIDsOf(tree))
}

func TestMount_IDsAreNormalized(t *testing.T) {
	rec := trace.NewRecorder()
	decomposed := "cafe\u0301"
	composed := "caf\u00e9"
	tree := startTree(t, newHost("host", counters, true), []string{decomposed}, rec)

	views, err := tree.Render()
	require.NoError(t, err)
	views[decomposed].Send(increment)

	tree.Send(hostEvent{Set: []string{composed}})

	views, err = tree.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, views[composed].Count)
	assert.Equal(t, 1, rec.Count(trace.KindMount, "host/"+composed))
	assert.Equal(t, 0, rec.Count(trace.KindDispose, "host/"+composed))
}

func TestMount_NestedPathsAndCascadingDispose(t *testing.T) {
	mid := Must(New(Definition[int, int, counterEvent, struct{}, counterView]{
		Name:         "mid",
		InitialState: func(n int) int { return n },
		Stepper:      counterStep,
		Render: func(n int, ctx *RenderContext[counterEvent, struct{}]) counterView {
			leaf := Mount(ctx, "leaf", counterFlow, n, nil)
			return counterView{Count: n + leaf.Count, Send: ctx.Send}
		},
	}))
	rec := trace.NewRecorder()
	tree := startTree(t, newHost("outer", func(string) *counterDef { return mid }, true), []string{"mid"}, rec)

	_, err := tree.Render()
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count(trace.KindMount, "outer/mid/leaf"))

	tree.Dispose()

	var disposed []string
	for _, r := range rec.Filter(trace.KindDispose, "") {
		disposed = append(disposed, r.Path)
	}
	assert.Equal(t, []string{"outer/mid/leaf", "outer/mid", "outer"}, disposed)
}

func TestMount_ParentCompletionFromChildDisposesSubtree(t *testing.T) {
	rec := trace.NewRecorder()
	// The relay completes as soon as any child reports back.
	f := Must(New(Definition[[]string, []string, hostEvent, string, map[string]counterView]{
		Name:         "relay",
		InitialState: func(ids []string) []string { return ids },
		Stepper: func(_ []string, e hostEvent) Step[[]string, string] {
			return Complete[[]string](e.Finish)
		},
		Render: func(ids []string, ctx *RenderContext[hostEvent, string]) map[string]counterView {
			views := make(map[string]counterView, len(ids))
			for _, id := range ids {
				views[id] = Mount(ctx, id, counterFlow, 0, func(struct{}) hostEvent { return hostEvent{Finish: id} })
			}
			return views
		},
	}))
	tree := startTree(t, f, []string{"x", "y"}, rec)

	views, err := tree.Render()
	require.NoError(t, err)

	views["x"].Send(backPressed)

	assert.Equal(t, "x", <-tree.Output())
	assert.Equal(t, 1, rec.Count(trace.KindDispose, "relay/x"))
	assert.Equal(t, 1, rec.Count(trace.KindDispose, "relay/y"))
	assert.Equal(t, 1, rec.Count(trace.KindDispose, "relay"))
	assert.Equal(t, 1, rec.Count(trace.KindState, "relay/y"), "y never stepped")
}
