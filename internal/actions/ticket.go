// Package actions implements external side effects triggered by dispatch
// rules. The mechanics of any particular tracker live behind the agent
// client; this package only builds the request and interprets the
// reference that comes back.
package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/bouncer/internal/agent"
	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/engine"
)

const ticketSystem = `You create issue-tracker tickets for code-quality findings.
Create exactly one ticket from the provided material and respond with the
structured verdict; put the created ticket reference (URL or key) in summary.`

// Ticket files one tracker issue per qualifying outcome.
//
// Safe to retry: the tracker-side duplicate window is covered by the
// dispatcher's idempotency record, and a failed Apply leaves no record.
type Ticket struct {
	client  agent.Client
	tracker string // e.g. "github", "linear" - routed by the service
	project string
}

// NewTicket creates the action. tracker and project select the remote
// destination the reasoning service should use.
func NewTicket(client agent.Client, tracker, project string) *Ticket {
	return &Ticket{client: client, tracker: tracker, project: project}
}

func (t *Ticket) Name() string { return "ticket:" + t.tracker }

// Apply creates the ticket and returns its reference.
func (t *Ticket) Apply(ctx context.Context, res *engine.AggregateResult, outcome check.Outcome) (string, error) {
	verdict, err := t.client.Evaluate(ctx, agent.Request{
		System:  ticketSystem,
		Task:    fmt.Sprintf("Create a %s ticket in %q for findings from the %s check.", t.tracker, t.project, outcome.Check),
		Payload: ticketBody(res, outcome),
	})
	if err != nil {
		return "", fmt.Errorf("create %s ticket: %w", t.tracker, err)
	}
	ref := strings.TrimSpace(verdict.Summary)
	if ref == "" {
		return "", fmt.Errorf("create %s ticket: service returned no reference", t.tracker)
	}
	return ref, nil
}

// ticketBody renders the finding material the tracker entry is built from.
func ticketBody(res *engine.AggregateResult, outcome check.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s (%s)\n", res.Event.Path, res.Event.Kind)
	fmt.Fprintf(&b, "Check: %s - status %s\n", outcome.Check, outcome.Status)
	if outcome.Err != nil {
		fmt.Fprintf(&b, "Check failure: %v\n", outcome.Err)
	}
	for _, is := range outcome.Issues {
		fmt.Fprintf(&b, "- [%s] %s", is.Severity, is.Description)
		if is.Line > 0 {
			fmt.Fprintf(&b, " (line %d)", is.Line)
		}
		if is.Suggestion != "" {
			fmt.Fprintf(&b, " - suggestion: %s", is.Suggestion)
		}
		b.WriteString("\n")
	}
	for _, fx := range outcome.Fixes {
		fmt.Fprintf(&b, "- fix applied: %s\n", fx.Description)
	}
	return b.String()
}
