// Package harness runs scripted scenarios against the demo flows.
//
// A scenario starts one demo program, drives it with steps, and checks
// assertions against the recorded trace, the final rendering and the
// root's output.
//
// # Scenario Format
//
// Scenarios are YAML (or CUE, for files ending in .cue) with the following
// structure:
//
//	name: counter basics
//	description: "Counting up, down, then leaving"
//	flow: counter
//	input: "0"
//	steps:
//	  - send: increment
//	  - tap: counter
//	    action: decrement
//	  - render: true
//	  - send: jump
//	    expect_error: unknown counter event
//	assertions:
//	  - type: states
//	    path: counter
//	    values: ["0", "1", "0"]
//	  - type: output
//	    value: "{}"
//
// # Step Types
//
//   - send: parses the text as an event of the root flow and sends it
//   - tap: renders, finds the screen rendered at the path and invokes action
//   - render: runs a render pass
//
// A step with expect_error must fail with an error containing that text.
//
// # Assertion Types
//
//   - states: the details of every state published at path, in order
//   - output: the root completed with this printable output
//   - no_output: the root did not complete
//   - rendering_contains: the final rendering contains text
//   - trace_contains: a record of kind at path (and detail, if given) exists
//   - trace_count: exactly count records of kind at path exist
//   - trace_order: events ("kind path [detail]") appear in this order,
//     not necessarily consecutively
//
// # Deterministic Testing
//
// All scenarios execute with a deterministic clock and a fixed run id
// (scenario.run_id, default "test-run-default"), against a fresh in-memory
// SQLite store. The trace is written through store.RecordWriter and read
// back with store.ReadTrace, so identical scenarios produce identical
// traces and golden files.
package harness
