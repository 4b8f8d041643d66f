// Package engine orchestrates the pipeline from a debounced event to a
// dispatched aggregate result.
//
// One run: acquire the path lock → select applicable checks → run them
// under a global concurrency bound and per-check timeouts → fold fixes
// onto the file one at a time → aggregate verdicts by precedence →
// release the lock → append an audit record → hand off to the dispatcher.
//
// Guarantees:
//
//   - Events for one path are processed in arrival order and never
//     concurrently (FIFO lock table; mid-run arrivals queue, never drop).
//   - Events for different paths have no relative ordering and complete
//     independently.
//   - Outcomes are collected in check-registration order regardless of
//     completion order, so aggregation is deterministic.
//   - A check failure (timeout, error, panic, malformed result) becomes a
//     warning outcome with a failure marker; it never aborts siblings and
//     never crashes the run.
//   - Only the fix fold writes the watched file, one fix at a time, via
//     temp-file-then-atomic-rename; checks themselves only read.
package engine
