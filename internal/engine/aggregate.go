package engine

import (
	"time"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
	"github.com/roach88/bouncer/internal/store"
)

// AggregateResult is the merged verdict for one debounced event.
//
// Outcomes are in check-registration order regardless of completion
// order. The result is owned by the engine until handed to the audit log
// and dispatcher; after that it is read-only.
type AggregateResult struct {
	ID        string
	Seq       int64
	Event     event.DebouncedEvent
	Outcomes  []check.Outcome
	Overall   check.Status
	CreatedAt time.Time
}

// IssueCount returns the total number of issues across outcomes.
func (r *AggregateResult) IssueCount() int {
	n := 0
	for _, o := range r.Outcomes {
		n += len(o.Issues)
	}
	return n
}

// FixCount returns the total number of fixes across outcomes.
func (r *AggregateResult) FixCount() int {
	n := 0
	for _, o := range r.Outcomes {
		n += len(o.Fixes)
	}
	return n
}

// Aggregate derives the overall status by precedence:
// denied > critical issue present > fixed > warning > approved.
//
//   - any denial wins outright
//   - an unresolved high/critical issue forces at least warning
//   - fixed requires every outcome fixed or approved with at least one fix
//   - approved requires every outcome approved
func Aggregate(outcomes []check.Outcome) check.Status {
	if len(outcomes) == 0 {
		return check.StatusApproved
	}

	anyDenied := false
	anyWarning := false
	fixCount := 0
	criticalOpen := false

	for _, o := range outcomes {
		switch o.Status {
		case check.StatusDenied:
			anyDenied = true
		case check.StatusWarning:
			anyWarning = true
		case check.StatusFixed:
			fixCount += len(o.Fixes)
		}
		if o.Status != check.StatusFixed {
			for _, is := range o.Issues {
				if is.Severity.Rank() >= check.SeverityHigh.Rank() {
					criticalOpen = true
				}
			}
		}
	}

	switch {
	case anyDenied:
		return check.StatusDenied
	case criticalOpen:
		return check.StatusWarning
	case !anyWarning && fixCount > 0:
		return check.StatusFixed
	case anyWarning:
		return check.StatusWarning
	default:
		return check.StatusApproved
	}
}

// record converts the result to its audit form.
func (r *AggregateResult) record() store.RunRecord {
	rec := store.RunRecord{
		ID:          r.ID,
		Seq:         r.Seq,
		Path:        r.Event.Path,
		Kind:        string(r.Event.Kind),
		Fingerprint: r.Event.Fingerprint.String(),
		Overall:     string(r.Overall),
		CreatedAt:   r.CreatedAt,
	}
	for _, o := range r.Outcomes {
		or := store.OutcomeRecord{
			Check:      o.Check,
			Status:     string(o.Status),
			DurationMS: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			or.Failure = o.Err.Error()
		}
		for _, is := range o.Issues {
			or.Issues = append(or.Issues, store.IssueRecord{
				Description: is.Description,
				Severity:    string(is.Severity),
				Line:        is.Line,
				Suggestion:  is.Suggestion,
			})
		}
		for _, fx := range o.Fixes {
			or.Fixes = append(or.Fixes, fx.Description)
		}
		rec.Outcomes = append(rec.Outcomes, or)
	}
	return rec
}
