// Package demo contains the flows the CLI and the scenario harness drive.
//
// Every demo flow renders a Screen: a presentation-agnostic description of
// what a UI would show (title, body, named actions, child screens). Actions
// are the callbacks a button would invoke; they send events into the node
// that rendered them.
//
// Flows:
//   - counter: increments and decrements a count, completes on back
//   - wizard: mounts a counter as a child, counts finished rounds
//   - downloads: fans out one fetch effect per requested file
//
// Programs (see Lookup) wrap a flow in a flow.Tree behind a string-driven
// interface, so scenarios and the CLI can drive any flow without knowing
// its type parameters.
package demo
