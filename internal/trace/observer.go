package trace

import (
	"context"
	"log/slog"
	"sync"
)

// Observer receives trace records.
//
// Observe is called on the tree's logical execution context, in sequence
// order. Implementations must not block and must not call back into the
// tree synchronously.
type Observer interface {
	Observe(Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Record)

// Observe calls f(r).
func (f ObserverFunc) Observe(r Record) { f(r) }

type discard struct{}

func (discard) Observe(Record) {}

// Discard drops every record.
var Discard Observer = discard{}

type multi []Observer

func (m multi) Observe(r Record) {
	for _, o := range m {
		o.Observe(r)
	}
}

// Multi fans records out to several observers in order. Nil observers are
// skipped.
func Multi(observers ...Observer) Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	if len(m) == 0 {
		return Discard
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

// Recorder keeps every record in memory.
//
// Thread-safety: safe for concurrent use; tests typically read it from the
// goroutine that drove the tree.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe appends r.
func (rec *Recorder) Observe(r Record) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.records = append(rec.records, r)
}

// Records returns a copy of everything recorded so far.
func (rec *Recorder) Records() []Record {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]Record, len(rec.records))
	copy(out, rec.records)
	return out
}

// Filter returns the records of the given kind at path.
// An empty path matches every node.
func (rec *Recorder) Filter(kind Kind, path string) []Record {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var out []Record
	for _, r := range rec.records {
		if r.Kind == kind && (path == "" || r.Path == path) {
			out = append(out, r)
		}
	}
	return out
}

// Values returns the Value of every record of kind at path.
func (rec *Recorder) Values(kind Kind, path string) []any {
	records := rec.Filter(kind, path)
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r.Value
	}
	return out
}

// Details returns the Detail of every record of kind at path.
func (rec *Recorder) Details(kind Kind, path string) []string {
	records := rec.Filter(kind, path)
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Detail
	}
	return out
}

// Count returns how many records of kind were observed at path.
func (rec *Recorder) Count(kind Kind, path string) int {
	return len(rec.Filter(kind, path))
}

// Reset forgets all records.
func (rec *Recorder) Reset() {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.records = nil
}

// LogObserver writes records as structured log lines.
type LogObserver struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogObserver logs records at Debug level, except effect failures which
// are logged at Warn. A nil logger uses slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger, level: slog.LevelDebug}
}

// Observe logs r.
func (o *LogObserver) Observe(r Record) {
	level := o.level
	if r.Kind == KindEffectFail {
		level = slog.LevelWarn
	}
	o.logger.Log(context.Background(), level, "flow trace",
		"run_id", r.RunID,
		"seq", r.Seq,
		"path", r.Path,
		"kind", string(r.Kind),
		"detail", r.Detail,
	)
}
