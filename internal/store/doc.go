// Package store provides SQLite-backed verdict history for matrix runs.
//
// Two tables are kept:
//   - runs: one row per invocation of the harness, keyed by a UUIDv7
//   - unit_results: one row per executed unit, ordered by seq within a run
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Timestamps are stored as RFC 3339 UTC text. Unit rows are read back in
// seq order, so a run's history lists units in matrix order.
package store
