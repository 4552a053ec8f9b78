// Package store defines the record/edge substrate the graph layer runs on,
// and provides its SQLite implementation.
//
// The substrate is an append-only, content-addressed store with:
//   - Records: immutable entity records, tombstoned (never removed) on delete
//   - Edges: immutable physical edges, marked deleted (never removed)
//
// # Guarantees
//
// Each method is a single atomic physical operation. Nothing spans calls:
// multi-write operations above this layer are not transactional.
//
// Writes are idempotent on content address (ON CONFLICT DO NOTHING).
//
// Edge queries are ordered by seq ASC, ref ASC COLLATE BINARY so results are
// reproducible, but callers must not treat the order as meaningful.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The Badger implementation lives in store/kvstore.
package store
