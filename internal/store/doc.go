// Package store provides SQLite-backed durable storage for equilibrium
// records and the duplicate-review quarantine.
//
// Two tables:
//   - equilibrium_records: measured (temperature, pressure, composition) points
//   - pending_review: quarantined snapshots grouped by review group id
//
// # Critical Patterns
//
// Deterministic Query Results
//   - Every record query ends its ORDER BY with "id ASC"
//   - Reads return empty slices, never nil
//
// Single-Statement Aggregates
//   - CountRecords, PresenceCounts, Envelope, DuplicateRows and Totals
//     each run exactly one SQL statement
//   - Duplicate buckets are computed in SQL with CAST(ROUND(x * scale) AS
//     INTEGER), bit-compatible with gas.NewSignature
//
// Transactions
//   - WithTx hands the callback a *Tx; the pool holds one connection, so
//     code inside the callback must use the Tx and never the Store
//   - Tx.DeleteRecord fails unless exactly one row was removed
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Predicates are compiled by internal/filtersql; values are always bound as
// parameters.
package store
