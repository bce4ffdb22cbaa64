// Package store persists pipeline run records.
//
// Two implementations share one contract:
//   - Store: database/sql with SQLite (mattn/go-sqlite3) or PostgreSQL (lib/pq)
//   - Memory: process-local maps, for tests and dry runs
//
// # Tables
//
// pipeline_runs holds one row per run: identity, status, window, timing and
// the phase summary lists (JSON arrays). phase_records holds one JSON detail
// blob per (run, phase).
//
// # Ordering
//
// "Most recent" always means highest seq, the insertion counter. Wall clock
// timestamps are stored for display only and never used to order runs.
//
// # Atomic phase updates
//
// UpdatePhase and FinalizeRun read the run, apply the change through the
// drive model (which enforces the phase partition) and write the run row and
// phase row in one transaction. PostgreSQL locks the run row with FOR
// UPDATE; SQLite serializes writers through a single connection.
//
// Timestamps are stored as fixed-width UTC text so that lexical order equals
// time order on both databases.
package store
