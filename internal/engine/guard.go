package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxFixSize bounds fix content when the configuration does not.
const DefaultMaxFixSize = 1 << 20 // 1 MiB

// protectedFragments name files no fix may ever touch.
var protectedFragments = []string{
	".env", "secrets", "credentials", "private_key", "id_rsa",
}

// secretAssignment matches an obvious hardcoded credential being
// introduced by a fix ("api_key = \"...\"" and close variants).
var secretAssignment = regexp.MustCompile(
	`(?i)(api[_-]?key|password|secret[_-]?key|access[_-]?token)\s*[:=]\s*["'][^"']{8,}["']`)

// WriteGuard validates a proposed fix before the fold writes it.
//
// A refused fix is not an engine failure: the owning outcome is
// downgraded to warning and the file is left untouched.
type WriteGuard struct {
	maxSize int64
}

// NewWriteGuard creates a guard. maxSize <= 0 uses DefaultMaxFixSize.
func NewWriteGuard(maxSize int64) *WriteGuard {
	if maxSize <= 0 {
		maxSize = DefaultMaxFixSize
	}
	return &WriteGuard{maxSize: maxSize}
}

// Validate returns a GUARD_REFUSED RunError when the fix must not be
// written, nil otherwise.
func (g *WriteGuard) Validate(path string, content []byte) error {
	lower := strings.ToLower(path)
	for _, frag := range protectedFragments {
		if strings.Contains(lower, frag) {
			return &RunError{
				Code:    ErrCodeGuardRefused,
				Message: fmt.Sprintf("refusing to modify protected file (matched %q)", frag),
				Path:    path,
			}
		}
	}

	if int64(len(content)) > g.maxSize {
		return &RunError{
			Code:    ErrCodeGuardRefused,
			Message: fmt.Sprintf("fix content %d bytes exceeds limit %d", len(content), g.maxSize),
			Path:    path,
		}
	}

	if m := secretAssignment.Find(content); m != nil {
		return &RunError{
			Code:    ErrCodeGuardRefused,
			Message: "fix would introduce a hardcoded credential",
			Path:    path,
		}
	}

	return nil
}
