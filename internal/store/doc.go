// Package store provides database/sql backed storage for the activity log
// and for committed configuration objects.
//
// Two tables are kept:
//   - director_activity_log: the hash-chained, append-only activity log
//   - director_object: the current serialized state of each object
//
// # Critical Patterns
//
// Single successor per entry:
//   - UNIQUE(parent_checksum) means at most one entry can extend any given
//     entry, so two writers racing on the same latest entry cannot both win
//   - The loser sees activity.ErrParentConflict and retries
//
// Ordering:
//   - The chain is ordered by id, never by change_time
//
// # Dialects
//
// SQLite (github.com/mattn/go-sqlite3) opens with _txlock=immediate so the
// read-latest and insert of an append happen under the write lock. Postgres
// (github.com/jackc/pgx/v5/stdlib) takes a transaction-scoped advisory lock
// instead.
//
// SQLite database configuration:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
