package trace

import (
	"fmt"
	"strings"
)

// Kind identifies what a Record describes.
type Kind string

const (
	// KindMount: a child node was created and started by a render pass.
	KindMount Kind = "mount"
	// KindReuse: a render pass matched an existing child by id.
	KindReuse Kind = "reuse"
	// KindRender: a node's render function returned.
	KindRender Kind = "render"
	// KindState: a node published a state (the first one included).
	KindState Kind = "state"
	// KindOutput: a node emitted its terminal output.
	KindOutput Kind = "output"
	// KindDispose: a node was disposed.
	KindDispose Kind = "dispose"
	// KindDrop: an event reached a node that no longer accepts events.
	KindDrop Kind = "drop"
	// KindEffectStart: a feedback started an effect subscription.
	KindEffectStart Kind = "effect_start"
	// KindEffectCancel: a feedback cancelled an effect subscription.
	KindEffectCancel Kind = "effect_cancel"
	// KindEffectFail: an effect subscription ended abnormally.
	KindEffectFail Kind = "effect_fail"
)

// Kinds lists every record kind in declaration order.
var Kinds = []Kind{
	KindMount, KindReuse, KindRender, KindState, KindOutput, KindDispose,
	KindDrop, KindEffectStart, KindEffectCancel, KindEffectFail,
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown trace kind %q", s)
}

// Record is one observable engine event.
type Record struct {
	// RunID correlates all records of one tree.
	RunID string `json:"run_id,omitempty"`

	// Seq is the logical clock value; strictly increasing within a run.
	Seq int64 `json:"seq"`

	// Path locates the node, e.g. "wizard/counter".
	Path string `json:"path"`

	Kind Kind `json:"kind"`

	// Detail is the printable form of Value.
	Detail string `json:"detail,omitempty"`

	// Value is the in-process payload (state, output, error...).
	// Not persisted.
	Value any `json:"-"`
}

// String renders the record as a single stable line:
//
//	3 state counter 2
func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s %s", r.Seq, r.Kind, r.Path)
	if r.Detail != "" {
		b.WriteByte(' ')
		b.WriteString(r.Detail)
	}
	return b.String()
}

// Format renders records one per line with a trailing newline.
func Format(records []Record) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}
