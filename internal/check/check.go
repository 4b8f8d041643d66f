// Package check defines the capability contract every pluggable check
// implements, the outcome model checks produce, and the registry the
// orchestrator consults to route events.
//
// A check never writes the watched file itself. Side-effecting checks
// return Fixes; the orchestrator applies them one at a time under the
// path lock so no two checks ever write concurrently.
package check

import (
	"context"
	"time"

	"github.com/roach88/bouncer/internal/event"
)

// Status is a single check's verdict for one event.
type Status string

const (
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusFixed    Status = "fixed"
	StatusWarning  Status = "warning"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusFixed, StatusWarning:
		return true
	}
	return false
}

// Severity ranks an issue. Ordering matters: Rank is used to sort issues
// for notification summaries and to decide whether an issue forces the
// aggregate status to degrade.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns a comparable weight; higher is more severe. Unknown
// severities rank below low so malformed agent output never escalates.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Issue is one problem a check found.
type Issue struct {
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Path        string   `json:"path"`
	Line        int      `json:"line,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// Fix is a proposed rewrite of the checked file. Content is the complete
// replacement text: the orchestrator's fold feeds each check the file
// state left by the previous fix, so replacement semantics compose.
type Fix struct {
	Description string `json:"description"`
	Content     string `json:"content,omitempty"`
}

// Mode declares whether a check may propose fixes.
type Mode string

const (
	// ModeReportOnly checks only read the file and report issues.
	ModeReportOnly Mode = "report_only"
	// ModeSideEffecting checks may additionally return Fixes for the
	// orchestrator to apply.
	ModeSideEffecting Mode = "side_effecting"
)

// Outcome is the immutable result of exactly one check invocation.
//
// A failed check (timeout, transport error, malformed result) is still an
// Outcome: Status is StatusWarning and Err carries the failure, so the
// aggregate stays degraded-but-complete rather than silently incomplete.
type Outcome struct {
	Check    string        `json:"check"`
	Status   Status        `json:"status"`
	Issues   []Issue       `json:"issues,omitempty"`
	Fixes    []Fix         `json:"fixes,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Failed reports whether the outcome records a check failure rather than
// a verdict the check computed itself.
func (o *Outcome) Failed() bool {
	return o.Err != nil
}

// Input is everything a check receives for one run. Content is the file's
// bytes at the time the orchestrator acquired the path lock; it is nil for
// deleted or renamed files.
type Input struct {
	Event   event.ChangeEvent
	Content []byte
}

// Check is the closed capability contract for one pluggable evaluator.
//
// Applicable must be cheap and synchronous: it is consulted for every
// debounced event before any expensive work starts. Run may block on
// external services; it receives a context carrying the per-check timeout
// and must honor cancellation.
type Check interface {
	Name() string
	Mode() Mode
	Applicable(ev event.ChangeEvent) bool
	Run(ctx context.Context, in Input) (*Outcome, error)
}
