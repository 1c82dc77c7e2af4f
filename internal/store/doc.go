// Package store provides SQLite-backed dispatch history.
//
// The store is an append-only log with two tables:
//   - dispatches: one row per dispatched command, built-in or launched
//   - launch_results: how each launched command ended
//
// Store implements dispatch.Recorder. RecordExit is called from launcher
// goroutines; a single pooled connection serialises writes.
//
// # Ordering
//
// Queries order by seq, the dispatcher's logical counter, then by id.
// Timestamps are stored as RFC 3339 text and never used for ordering.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
