package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bouncer/internal/check"
)

func TestSlackSendsRenderedText(t *testing.T) {
	var body atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body.Store(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, "#alerts", check.SeverityMedium, DetailSummary)
	require.NoError(t, s.Send(context.Background(), fixtureResult()))

	raw, ok := body.Load().([]byte)
	require.True(t, ok, "no request received")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "#alerts", payload["channel"])
	assert.Contains(t, payload["text"], "src/api.go")
	assert.Contains(t, payload["text"], "possible nil dereference")
}

func TestSlackSkipsQuietApprovals(t *testing.T) {
	called := atomic.Bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer srv.Close()

	res := fixtureResult()
	res.Overall = check.StatusApproved
	res.Outcomes = []check.Outcome{{
		Check:  "license",
		Status: check.StatusApproved,
		Issues: []check.Issue{{Description: "nit", Severity: check.SeverityLow}},
	}}

	s := NewSlack(srv.URL, "", check.SeverityMedium, DetailSummary)
	require.NoError(t, s.Send(context.Background(), res))
	assert.False(t, called.Load(), "approved result below min severity must be skipped")

	// The same approval with a high-severity issue goes through.
	res.Outcomes[0].Issues[0].Severity = check.SeverityHigh
	require.NoError(t, s.Send(context.Background(), res))
	assert.True(t, called.Load())
}

func TestWebhookSendsPayloadWithHeaders(t *testing.T) {
	type got struct {
		method string
		auth   string
		body   []byte
	}
	var rec atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.Store(got{method: r.Method, auth: r.Header.Get("Authorization"), body: b})
	}))
	defer srv.Close()

	wh, err := NewWebhook(srv.URL, http.MethodPut, map[string]string{"Authorization": "Bearer tok"}, DetailFull)
	require.NoError(t, err)
	require.NoError(t, wh.Send(context.Background(), fixtureResult()))

	g, ok := rec.Load().(got)
	require.True(t, ok)
	assert.Equal(t, http.MethodPut, g.method)
	assert.Equal(t, "Bearer tok", g.auth)

	var payload Payload
	require.NoError(t, json.Unmarshal(g.body, &payload))
	assert.Equal(t, "full_transcript", payload.Format)
	assert.Len(t, payload.Checks, 3)
}

func TestWebhookRejectsUnsupportedMethod(t *testing.T) {
	_, err := NewWebhook("http://example.invalid", http.MethodDelete, nil, DetailSummary)
	assert.Error(t, err)
}

func TestPostJSONRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh, err := NewWebhook(srv.URL, "", nil, DetailSummary)
	require.NoError(t, err)
	require.NoError(t, wh.Send(context.Background(), fixtureResult()))
	assert.Equal(t, int32(2), calls.Load(), "first 500 must be retried")
}

func TestPostJSONPermanentFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	wh, err := NewWebhook(srv.URL, "", nil, DetailSummary)
	require.NoError(t, err)
	assert.Error(t, wh.Send(context.Background(), fixtureResult()))
	assert.Equal(t, int32(1), calls.Load(), "4xx is permanent")
}

func TestFileLogAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLog(dir, DetailDetailed)
	require.NoError(t, err)

	res := fixtureResult()
	require.NoError(t, fl.Send(context.Background(), res))
	require.NoError(t, fl.Send(context.Background(), res))

	name := filepath.Join(dir, "bouncer-2025-03-14.jsonl")
	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()

	var lines []Payload
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var p Payload
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &p))
		lines = append(lines, p)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, "src/api.go", lines[0].Path)
	assert.Equal(t, "detailed", lines[0].Format)
}
