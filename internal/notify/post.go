package notify

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

// postJSON delivers a JSON payload to a webhook endpoint, retrying
// transient failures (network errors, 429, 5xx) with exponential backoff.
// The envelope is kept short - a notification that cannot land in
// maxElapsed is dropped by the caller, not queued forever.
func postJSON(ctx context.Context, httpc *http.Client, method, url string, headers map[string]string, payload any, maxElapsed time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxElapsed

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("transient status %d", resp.StatusCode)
		default:
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, msg))
		}
	}

	return backoff.Retry(attempt, backoff.WithContext(policy, ctx))
}
