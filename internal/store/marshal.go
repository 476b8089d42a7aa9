package store

import (
	"bytes"
	"encoding/json"
	"strings"
)

// marshalValue converts a trace value to JSON TEXT for storage.
//
// Values are whatever the flows put in their states, events and outputs.
// Anything encoding/json cannot represent (funcs, channels, cycles) is
// stored as the record's printable detail instead, so a trace is never lost
// to an unencodable value.
func marshalValue(v any, detail string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // keep "<", ">" and "&" readable in stored traces
	if err := enc.Encode(v); err != nil {
		enc = json.NewEncoder(&buf)
		buf.Reset()
		enc.SetEscapeHTML(false)
		if err := enc.Encode(detail); err != nil {
			return "null"
		}
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String())
}
