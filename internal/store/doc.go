// Package store provides SQLite-backed durable storage for the bouncer.
//
// Three concerns share one database file:
//
//   - Audit runs: an append-only log of every orchestrator run, with the
//     per-check outcomes serialized as JSON. Queryable by path and time
//     range. Records are never mutated after insert.
//   - Seen errors: the dedup set used by log-investigation checks. Insert
//     is atomic (INSERT OR IGNORE), so two concurrent investigations can
//     never both win insertion of the same fingerprint.
//   - Action records: idempotency markers for external side effects,
//     keyed by (path, check, content fingerprint). Reserving a key is an
//     atomic insert-if-absent; a failed action releases its reservation
//     so the next dispatch may retry.
//
// Ordering of audit records uses seq INTEGER (a logical clock stamped by
// the engine), never wall-clock timestamps, so replaying an audit query
// is deterministic.
//
// Database configuration:
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
