package demo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/flowtree/internal/flow"
)

// Fetcher downloads one file and returns its size.
type Fetcher func(ctx context.Context, name string) (int, error)

// DownloadKind discriminates download events.
type DownloadKind string

const (
	DownloadRequest  DownloadKind = "request"
	DownloadCancel   DownloadKind = "cancel"
	DownloadFinished DownloadKind = "finished"
	DownloadFailed   DownloadKind = "failed"
	DownloadClose    DownloadKind = "close"
)

// DownloadEvent is an event of the downloads flow.
type DownloadEvent struct {
	Kind DownloadKind
	Name string
	Size int
	Err  string
}

func (e DownloadEvent) String() string {
	switch e.Kind {
	case DownloadFinished:
		return fmt.Sprintf("finished %s (%d bytes)", e.Name, e.Size)
	case DownloadFailed:
		return fmt.Sprintf("failed %s: %s", e.Name, e.Err)
	case DownloadClose:
		return "close"
	}
	return string(e.Kind) + " " + e.Name
}

// Download is a settled download.
type Download struct {
	Name string
	Size int
	Err  string
}

// DownloadsState is the downloads flow's state. Pending names are fetched
// concurrently, one subscription each.
type DownloadsState struct {
	Pending []string
	Settled []Download
}

func (s DownloadsState) String() string {
	settled := make([]string, len(s.Settled))
	for i, d := range s.Settled {
		if d.Err != "" {
			settled[i] = d.Name + "!"
		} else {
			settled[i] = d.Name
		}
	}
	return fmt.Sprintf("pending=[%s] settled=[%s]", strings.Join(s.Pending, " "), strings.Join(settled, " "))
}

// DownloadsSummary is the output of the downloads flow.
type DownloadsSummary struct {
	Completed []string
	Failed    []string
	Cancelled []string
}

func (s DownloadsSummary) String() string {
	return fmt.Sprintf("completed=[%s] failed=[%s] cancelled=[%s]",
		strings.Join(s.Completed, " "),
		strings.Join(s.Failed, " "),
		strings.Join(s.Cancelled, " "))
}

// DownloadsFlow is the type of the flow NewDownloads returns.
type DownloadsFlow = flow.Flow[[]string, DownloadsState, DownloadEvent, DownloadsSummary, Screen]

// NewDownloads builds a downloads flow using fetch.
//
// Requesting a name adds it to the pending set, which starts one fetch per
// name (ReactSet); cancelling or settling a name removes it, which cancels
// its fetch if it is still running. With async set every fetch runs on its
// own goroutine; otherwise it runs inside the effect call, which keeps runs
// deterministic but requires a fetch that never blocks. A fetch returning
// ErrStalled leaves its download pending. Close completes with a summary;
// fetches still pending are reported as cancelled.
func NewDownloads(fetch Fetcher, async bool) *DownloadsFlow {
	fetchEffect := func(ctx context.Context, name string, sink flow.Sink[DownloadEvent]) {
		run := func() {
			size, err := fetch(ctx, name)
			if ctx.Err() != nil || errors.Is(err, ErrStalled) {
				return
			}
			if err != nil {
				sink.Send(DownloadEvent{Kind: DownloadFailed, Name: name, Err: err.Error()})
				return
			}
			sink.Send(DownloadEvent{Kind: DownloadFinished, Name: name, Size: size})
		}
		if async {
			go run()
			return
		}
		run()
	}

	return flow.Must(flow.New(flow.Definition[[]string, DownloadsState, DownloadEvent, DownloadsSummary, Screen]{
		Name: "downloads",
		InitialState: func(names []string) DownloadsState {
			var s DownloadsState
			for _, n := range names {
				if n != "" && !slices.Contains(s.Pending, n) {
					s.Pending = append(s.Pending, n)
				}
			}
			return s
		},
		Stepper: stepDownloads,
		Feedbacks: []flow.Feedback[DownloadsState, DownloadEvent]{
			flow.ReactSet("fetch", func(s DownloadsState) []string { return s.Pending }, fetchEffect),
		},
		Render: renderDownloads,
	}))
}

func stepDownloads(s DownloadsState, e DownloadEvent) flow.Step[DownloadsState, DownloadsSummary] {
	switch e.Kind {
	case DownloadRequest:
		if e.Name == "" || slices.Contains(s.Pending, e.Name) {
			return flow.Advance[DownloadsState, DownloadsSummary](s)
		}
		s.Pending = append(slices.Clone(s.Pending), e.Name)
	case DownloadCancel:
		s.Pending = removeName(s.Pending, e.Name)
	case DownloadFinished:
		s.Pending = removeName(s.Pending, e.Name)
		s.Settled = append(slices.Clone(s.Settled), Download{Name: e.Name, Size: e.Size})
	case DownloadFailed:
		s.Pending = removeName(s.Pending, e.Name)
		s.Settled = append(slices.Clone(s.Settled), Download{Name: e.Name, Err: e.Err})
	case DownloadClose:
		return flow.Complete[DownloadsState](summarize(s))
	}
	return flow.Advance[DownloadsState, DownloadsSummary](s)
}

func removeName(names []string, name string) []string {
	return slices.DeleteFunc(slices.Clone(names), func(n string) bool { return n == name })
}

func summarize(s DownloadsState) DownloadsSummary {
	var sum DownloadsSummary
	for _, d := range s.Settled {
		if d.Err != "" {
			sum.Failed = append(sum.Failed, d.Name)
		} else {
			sum.Completed = append(sum.Completed, d.Name)
		}
	}
	sum.Cancelled = slices.Clone(s.Pending)
	return sum
}

func renderDownloads(s DownloadsState, ctx *flow.RenderContext[DownloadEvent, DownloadsSummary]) Screen {
	var lines []string
	actions := map[string]func(){
		"close": ctx.Action(DownloadEvent{Kind: DownloadClose}),
	}
	for _, name := range s.Pending {
		lines = append(lines, name+": downloading")
		actions["cancel "+name] = ctx.Action(DownloadEvent{Kind: DownloadCancel, Name: name})
	}
	for _, d := range s.Settled {
		if d.Err != "" {
			lines = append(lines, fmt.Sprintf("%s: failed (%s)", d.Name, d.Err))
		} else {
			lines = append(lines, fmt.Sprintf("%s: %d bytes", d.Name, d.Size))
		}
	}
	body := "no downloads"
	if len(lines) > 0 {
		body = strings.Join(lines, "; ")
	}
	return Screen{
		Path:    ctx.Path(),
		Title:   "Downloads",
		Body:    body,
		Actions: actions,
	}
}

func parseDownloadEvent(s string) (DownloadEvent, error) {
	kind, name, _ := strings.Cut(strings.TrimSpace(s), " ")
	name = strings.TrimSpace(name)
	switch DownloadKind(kind) {
	case DownloadRequest, DownloadCancel:
		if name == "" {
			return DownloadEvent{}, fmt.Errorf("%s needs a file name", kind)
		}
		return DownloadEvent{Kind: DownloadKind(kind), Name: name}, nil
	case DownloadClose:
		return DownloadEvent{Kind: DownloadClose}, nil
	}
	return DownloadEvent{}, fmt.Errorf("unknown downloads event %q (want request <name>, cancel <name> or close)", s)
}

var (
	// ErrNotFound is returned by FakeFetcher for names starting with
	// "missing".
	ErrNotFound = errors.New("not found")

	// ErrStalled tells the downloads flow that a fetch never settles: the
	// download stays pending until it is cancelled or the flow closes.
	ErrStalled = errors.New("stalled")
)

// FakeFetcher is a deterministic, non-blocking Fetcher: the size of a file
// is 100 bytes per character of its name, names starting with "missing"
// fail with ErrNotFound, and names starting with "slow" stall.
func FakeFetcher(_ context.Context, name string) (int, error) {
	switch {
	case strings.HasPrefix(name, "missing"):
		return 0, ErrNotFound
	case strings.HasPrefix(name, "slow"):
		return 0, ErrStalled
	}
	return 100 * len(name), nil
}
