package flow

import (
	"fmt"
	"log/slog"

	"github.com/roach88/flowtree/internal/dispatch"
	"github.com/roach88/flowtree/internal/trace"
)

// treeRuntime is the non-generic state shared by every node of one tree.
type treeRuntime struct {
	queue    *dispatch.Queue
	clock    Clock
	observer trace.Observer
	logger   *slog.Logger
	runID    string

	// requestRender is the tree's re-render signal. It is per tree, never
	// global, so two trees never wake each other.
	requestRender func()
}

// record reports an engine event. Called only from the dispatch queue.
func (rt *treeRuntime) record(path string, kind trace.Kind, value any) {
	rt.recordDetail(path, kind, value, describe(value))
}

func (rt *treeRuntime) recordDetail(path string, kind trace.Kind, value any, detail string) {
	rt.observer.Observe(trace.Record{
		RunID:  rt.runID,
		Seq:    rt.clock.Next(),
		Path:   path,
		Kind:   kind,
		Detail: detail,
		Value:  value,
	})
}

// describe renders a value for trace details.
func describe(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
