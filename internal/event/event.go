package event

import "time"

// Kind classifies a filesystem change.
type Kind string

const (
	KindCreated  Kind = "created"
	KindModified Kind = "modified"
	KindDeleted  Kind = "deleted"
	KindRenamed  Kind = "renamed"
)

// Valid reports whether k is one of the defined change kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindCreated, KindModified, KindDeleted, KindRenamed:
		return true
	}
	return false
}

// ChangeEvent is one raw filesystem notification.
//
// Events are immutable: the watcher constructs them and hands them to the
// debouncer, which consumes each one exactly once. Fingerprint is the zero
// value when the file content was not readable at observation time
// (deleted or renamed-away files).
type ChangeEvent struct {
	Path        string
	Kind        Kind
	ObservedAt  time.Time
	Fingerprint Fingerprint
}

// DebouncedEvent is the last ChangeEvent observed for a path after the
// quiet period elapsed with no further events for that path.
//
// CoalescedCount records how many raw events collapsed into this one,
// including the surviving event itself.
type DebouncedEvent struct {
	ChangeEvent

	CoalescedCount int
	EmittedAt      time.Time
}
