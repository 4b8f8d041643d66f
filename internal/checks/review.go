package checks

import (
	"context"
	"fmt"

	"github.com/roach88/bouncer/internal/agent"
	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
)

// Review is the agent-backed check family: code quality, security,
// documentation, and any other configured reviewer are all Review
// instances with different names and instructions.
//
// Mode follows configuration: with auto-fix the service's proposed fixes
// are forwarded for the engine's fold to apply; without it they are
// dropped and only issues survive.
type Review struct {
	name        string
	instruction string
	mode        check.Mode
	denyAt      check.Severity
	spec        *check.Spec
	client      agent.Client
}

// NewReview creates an agent-backed reviewer.
//
// denyAt escalates: any issue at or above it turns the outcome into a
// denial even when the service stopped short of one. Empty denyAt
// disables escalation.
func NewReview(name, instruction string, mode check.Mode, denyAt check.Severity, spec *check.Spec, client agent.Client) *Review {
	return &Review{
		name:        name,
		instruction: instruction,
		mode:        mode,
		denyAt:      denyAt,
		spec:        spec,
		client:      client,
	}
}

func (r *Review) Name() string                         { return r.name }
func (r *Review) Mode() check.Mode                     { return r.mode }
func (r *Review) Applicable(ev event.ChangeEvent) bool { return r.spec.Match(ev) }

func (r *Review) Run(ctx context.Context, in check.Input) (*check.Outcome, error) {
	verdict, err := r.client.Evaluate(ctx, agent.Request{
		System:  r.instruction,
		Task:    fmt.Sprintf("Review the file %s (%s change).", in.Event.Path, in.Event.Kind),
		Payload: string(in.Content),
	})
	if err != nil {
		// Exhausted retries and timeouts are recorded by the engine as a
		// warning outcome; nothing to salvage here.
		return nil, err
	}

	out := &check.Outcome{
		Status: verdict.Status,
		Issues: verdict.Issues,
	}
	if out.Status == "" {
		out.Status = check.StatusApproved
	}

	if r.mode == check.ModeSideEffecting {
		out.Fixes = verdict.Fixes
		if len(out.Fixes) > 0 && out.Status == check.StatusApproved {
			out.Status = check.StatusFixed
		}
	}

	if r.denyAt != "" {
		for _, is := range out.Issues {
			if is.Severity.Rank() >= r.denyAt.Rank() {
				out.Status = check.StatusDenied
				break
			}
		}
	}

	return out, nil
}
