package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/roach88/bouncer/internal/engine"
)

// Webhook posts the JSON payload to an arbitrary endpoint. Method and
// headers come from configuration, so it adapts to most receivers
// without code changes.
type Webhook struct {
	url       string
	method    string
	headers   map[string]string
	formatter *Formatter
	httpc     *http.Client
}

// NewWebhook creates the notifier. method must be POST or PUT.
func NewWebhook(url, method string, headers map[string]string, level DetailLevel) (*Webhook, error) {
	switch method {
	case "", http.MethodPost:
		method = http.MethodPost
	case http.MethodPut:
	default:
		return nil, fmt.Errorf("webhook method %q not supported (want POST or PUT)", method)
	}
	return &Webhook{
		url:       url,
		method:    method,
		headers:   headers,
		formatter: NewFormatter(level),
		httpc:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, res *engine.AggregateResult) error {
	return postJSON(ctx, w.httpc, w.method, w.url, w.headers, w.formatter.Format(res), 30*time.Second)
}
