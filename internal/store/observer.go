package store

import (
	"context"
	"sync"

	"github.com/roach88/flowtree/internal/trace"
)

// RecordWriter is a trace.Observer that appends every record to the store.
//
// Observers cannot return errors, so the first write error is kept and
// later records are skipped; check Err once the run is over.
type RecordWriter struct {
	store *Store
	ctx   context.Context
	runID string

	mu  sync.Mutex
	err error
	n   int
}

// Observer returns a writer for runID. Records of other runs are ignored;
// an empty runID accepts every run.
func (s *Store) Observer(ctx context.Context, runID string) *RecordWriter {
	return &RecordWriter{store: s, ctx: ctx, runID: runID}
}

// Observe writes r.
func (w *RecordWriter) Observe(r trace.Record) {
	if w.runID != "" && r.RunID != w.runID {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	if err := w.store.WriteRecord(w.ctx, r); err != nil {
		w.err = err
		return
	}
	w.n++
}

// Err returns the first write error, if any.
func (w *RecordWriter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Written returns how many records were stored.
func (w *RecordWriter) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}
