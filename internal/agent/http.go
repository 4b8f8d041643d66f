package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPClient talks JSON over HTTP to a reasoning-service endpoint.
//
// Transient failures (network errors, 429, 5xx) are retried with
// exponential backoff up to maxElapsed; anything else fails immediately.
// The caller's context bounds the whole call including retries.
type HTTPClient struct {
	endpoint   string
	token      string
	maxElapsed time.Duration
	httpc      *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) HTTPOption {
	return func(c *HTTPClient) { c.token = token }
}

// WithCallTimeout bounds a single HTTP attempt (not the retry envelope).
func WithCallTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.httpc.Timeout = d }
}

// WithMaxElapsed bounds the total retry envelope.
func WithMaxElapsed(d time.Duration) HTTPOption {
	return func(c *HTTPClient) { c.maxElapsed = d }
}

// NewHTTPClient creates a client for the given endpoint.
func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		maxElapsed: 2 * time.Minute,
		httpc:      &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate submits the request and decodes the verdict.
func (c *HTTPClient) Evaluate(ctx context.Context, req Request) (*Verdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("agent: marshal request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.maxElapsed

	var verdict *Verdict
	operation := func() error {
		v, err := c.once(ctx, body)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return verdict, nil
}

// once performs a single HTTP attempt. Permanent failures are wrapped so
// the retry loop stops immediately.
func (c *HTTPClient) once(ctx context.Context, body []byte) (*Verdict, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("agent: build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		// Network-level failure: transient, retry.
		return nil, fmt.Errorf("agent: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("agent: transient status %d", resp.StatusCode)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, backoff.Permanent(fmt.Errorf("agent: status %d: %s", resp.StatusCode, msg))
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("agent: decode verdict: %w", err))
	}
	if !verdict.Status.Valid() && verdict.Status != "" {
		return nil, backoff.Permanent(fmt.Errorf("agent: malformed verdict status %q", verdict.Status))
	}
	return &verdict, nil
}
