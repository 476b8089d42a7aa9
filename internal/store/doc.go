// Package store provides SQLite-backed durable storage for flow traces.
//
// The store is an append-only log with:
//   - Runs: one row per tree (run id, flow name, scenario, final status)
//   - Trace records: every engine event of a run, keyed by (run_id, seq)
//
// # Critical Patterns
//
// Logical Identity and Time
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Replaying a scenario stores byte-identical traces
//
// Deterministic Query Results
//   - Trace queries use ORDER BY seq ASC
//   - Run listings use ORDER BY id COLLATE BINARY (UUIDv7 ids sort by
//     creation)
//
// Idempotent Writes
//   - Duplicate (run_id, seq) records are ignored, so an observer can be
//     attached to a run more than once without failing
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
