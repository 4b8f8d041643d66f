// Package notify formats aggregate results and delivers them to
// notification sinks.
//
// Sinks are best-effort and independent: the dispatcher fans one result
// out to every enabled notifier, and one sink failing never blocks
// another. Payload verbosity is controlled by a detail level; it never
// changes what the core computed.
package notify

import (
	"context"
	"fmt"

	"github.com/roach88/bouncer/internal/engine"
)

// DetailLevel controls payload verbosity.
type DetailLevel string

const (
	DetailSummary  DetailLevel = "summary"
	DetailDetailed DetailLevel = "detailed"
	DetailFull     DetailLevel = "full_transcript"
)

// ParseDetailLevel validates a configured detail level. "full" is
// accepted as shorthand for "full_transcript".
func ParseDetailLevel(s string) (DetailLevel, error) {
	switch DetailLevel(s) {
	case DetailSummary, DetailDetailed, DetailFull:
		return DetailLevel(s), nil
	case "full":
		return DetailFull, nil
	case "":
		return DetailSummary, nil
	}
	return "", fmt.Errorf("invalid detail level %q (want summary, detailed, or full_transcript)", s)
}

// Notifier is one notification sink.
type Notifier interface {
	Name() string
	Send(ctx context.Context, res *engine.AggregateResult) error
}
