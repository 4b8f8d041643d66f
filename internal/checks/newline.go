package checks

import (
	"context"
	"strings"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
)

// Newline ensures text files end with exactly one trailing newline.
// Side-effecting: proposes the corrected content as a fix.
type Newline struct {
	spec *check.Spec
}

// NewNewline creates the check.
func NewNewline(spec *check.Spec) *Newline {
	return &Newline{spec: spec}
}

func (n *Newline) Name() string                         { return "newline" }
func (n *Newline) Mode() check.Mode                     { return check.ModeSideEffecting }
func (n *Newline) Applicable(ev event.ChangeEvent) bool { return n.spec.Match(ev) }

func (n *Newline) Run(ctx context.Context, in check.Input) (*check.Outcome, error) {
	content := string(in.Content)
	if len(content) == 0 || (strings.HasSuffix(content, "\n") && !strings.HasSuffix(content, "\n\n")) {
		return &check.Outcome{Status: check.StatusApproved}, nil
	}

	fixed := strings.TrimRight(content, "\n") + "\n"
	return &check.Outcome{
		Status: check.StatusFixed,
		Fixes: []check.Fix{{
			Description: "normalized trailing newline",
			Content:     fixed,
		}},
	}, nil
}
