package checks

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
)

// headerWindow bounds how far into the file the marker is searched for;
// license headers live at the top.
const headerWindow = 1024

// License flags source files missing the expected license header.
// Report-only.
type License struct {
	spec   *check.Spec
	marker string
}

// NewLicense creates the check. marker is the substring that must appear
// near the top of the file (e.g. "SPDX-License-Identifier").
func NewLicense(spec *check.Spec, marker string) *License {
	if marker == "" {
		marker = "SPDX-License-Identifier"
	}
	return &License{spec: spec, marker: marker}
}

func (l *License) Name() string                         { return "license" }
func (l *License) Mode() check.Mode                     { return check.ModeReportOnly }
func (l *License) Applicable(ev event.ChangeEvent) bool { return l.spec.Match(ev) }

func (l *License) Run(ctx context.Context, in check.Input) (*check.Outcome, error) {
	window := in.Content
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	if bytes.Contains(window, []byte(l.marker)) {
		return &check.Outcome{Status: check.StatusApproved}, nil
	}

	return &check.Outcome{
		Status: check.StatusWarning,
		Issues: []check.Issue{{
			Description: fmt.Sprintf("missing license header (expected %q near the top)", l.marker),
			Severity:    check.SeverityLow,
			Path:        in.Event.Path,
			Line:        1,
			Suggestion:  "add the project license header",
		}},
	}, nil
}
