package notify

import (
	"context"
	"net/http"
	"time"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/engine"
)

// Slack posts results to a Slack incoming webhook.
//
// MinSeverity filters noise: an approved result with no issue at or above
// the threshold is skipped entirely.
type Slack struct {
	webhookURL  string
	channel     string
	minSeverity check.Severity
	formatter   *Formatter
	httpc       *http.Client
}

// NewSlack creates the notifier. level controls payload verbosity.
func NewSlack(webhookURL, channel string, minSeverity check.Severity, level DetailLevel) *Slack {
	return &Slack{
		webhookURL:  webhookURL,
		channel:     channel,
		minSeverity: minSeverity,
		formatter:   NewFormatter(level),
		httpc:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Slack) Name() string { return "slack" }

// Send posts the rendered result. Failures are returned to the dispatcher
// for logging; they never affect other sinks.
func (s *Slack) Send(ctx context.Context, res *engine.AggregateResult) error {
	if s.skip(res) {
		return nil
	}

	payload := map[string]any{
		"text": s.formatter.Format(res).Text(),
	}
	if s.channel != "" {
		payload["channel"] = s.channel
	}
	return postJSON(ctx, s.httpc, http.MethodPost, s.webhookURL, nil, payload, 30*time.Second)
}

func (s *Slack) skip(res *engine.AggregateResult) bool {
	if res.Overall != check.StatusApproved {
		return false
	}
	for _, o := range res.Outcomes {
		for _, is := range o.Issues {
			if is.Severity.Rank() >= s.minSeverity.Rank() {
				return false
			}
		}
	}
	return true
}
