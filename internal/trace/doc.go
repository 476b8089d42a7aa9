// Package trace defines the observable record of a running flow tree.
//
// Every engine-level event (a node mounted, a state published, an effect
// cancelled...) is reported to an Observer as a Record stamped with a
// logical sequence number. Records are what golden files, the SQLite trace
// store and diagnostic logging are built from.
//
// Sequence numbers come from a logical clock. NEVER use wall-clock time to
// order records: two runs fed the same events must produce identical traces.
package trace
