package agent

import (
	"context"
	"sync"
)

// ScriptedClient returns predetermined verdicts for testing, in order.
// It records every request it receives so tests can assert on payloads.
//
// Thread-safety: safe for concurrent use via internal mutex.
type ScriptedClient struct {
	mu       sync.Mutex
	verdicts []*Verdict
	errs     []error
	idx      int

	Requests []Request
}

// NewScriptedClient creates a client that replays the given verdicts.
// A nil verdict at position i is paired with errs[i] when provided.
func NewScriptedClient(verdicts ...*Verdict) *ScriptedClient {
	return &ScriptedClient{verdicts: verdicts}
}

// Fail appends an error response to the script.
func (c *ScriptedClient) Fail(err error) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts = append(c.verdicts, nil)
	for len(c.errs) < len(c.verdicts)-1 {
		c.errs = append(c.errs, nil)
	}
	c.errs = append(c.errs, err)
	return c
}

// Evaluate pops the next scripted response. Exhausting the script blocks
// on the context, which mimics a hung service for timeout tests.
func (c *ScriptedClient) Evaluate(ctx context.Context, req Request) (*Verdict, error) {
	c.mu.Lock()
	c.Requests = append(c.Requests, req)
	if c.idx < len(c.verdicts) {
		i := c.idx
		c.idx++
		v := c.verdicts[i]
		var err error
		if i < len(c.errs) {
			err = c.errs[i]
		}
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	c.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}
