// Package watch turns raw filesystem notifications into debounced events.
//
// Two pieces cooperate:
//
//   - Watcher wraps fsnotify: it walks the watch root, follows new
//     subdirectories, filters ignored paths, maps operations to change
//     kinds, and fingerprints readable files. Delivery is at-least-once
//     with no ordering guarantee across paths.
//   - Debouncer coalesces bursts per path: rapid events on one path
//     collapse into the single latest one, emitted only after the quiet
//     period elapses with nothing newer. Distinct paths debounce
//     independently and may emit concurrently.
//
// The debouncer cannot fail, only delay. Timers are explicit and
// re-armable for the process lifetime; there are no callback chains.
package watch
