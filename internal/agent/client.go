// Package agent abstracts the external reasoning service that backs the
// expensive checks and the ticket-creation actions.
//
// The core never sees the service's internals: it submits a Request and
// receives a Verdict or an error. Transport, authentication, and retry
// live behind the Client interface so tests can script verdicts without
// a network.
package agent

import (
	"context"

	"github.com/roach88/bouncer/internal/check"
)

// Request is one unit of work for the reasoning service.
type Request struct {
	// System frames the service's role for this call (review instructions,
	// ticket-creation instructions, ...).
	System string `json:"system"`
	// Task is the specific ask for this invocation.
	Task string `json:"task"`
	// Payload is the material under consideration: file content, parsed
	// log entries, or a rendered result for ticket creation.
	Payload string `json:"payload"`
	// MaxTokens bounds the response size; 0 uses the service default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Verdict is the service's structured answer. For review-style requests
// Status/Issues/Fixes carry the evaluation; for action-style requests
// Summary carries the created remote reference.
type Verdict struct {
	Status  check.Status  `json:"status"`
	Issues  []check.Issue `json:"issues,omitempty"`
	Fixes   []check.Fix   `json:"fixes,omitempty"`
	Summary string        `json:"summary,omitempty"`
}

// Client is the capability the core depends on. Evaluate blocks until the
// service answers, the context is cancelled, or retries are exhausted;
// an exhausted retry is an error, never a panic.
type Client interface {
	Evaluate(ctx context.Context, req Request) (*Verdict, error)
}
