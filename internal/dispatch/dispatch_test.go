package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/engine"
	"github.com/roach88/bouncer/internal/event"
	"github.com/roach88/bouncer/internal/notify"
	"github.com/roach88/bouncer/internal/store"
)

type fakeNotifier struct {
	name string
	err  error

	mu    sync.Mutex
	sends int
}

func (f *fakeNotifier) Name() string { return f.name }
func (f *fakeNotifier) Send(ctx context.Context, res *engine.AggregateResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sends
}

type fakeAction struct {
	ref string
	err error

	mu      sync.Mutex
	applied int
}

func (f *fakeAction) Name() string { return "fake" }
func (f *fakeAction) Apply(ctx context.Context, res *engine.AggregateResult, outcome check.Outcome) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied++
	return f.ref, f.err
}

func (f *fakeAction) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applied
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func deniedResult() *engine.AggregateResult {
	return &engine.AggregateResult{
		ID: "run-1",
		Event: event.DebouncedEvent{
			ChangeEvent: event.ChangeEvent{
				Path:        "src/api.go",
				Kind:        event.KindModified,
				Fingerprint: event.FingerprintBytes([]byte("content-v1")),
			},
		},
		Outcomes: []check.Outcome{
			{Check: "security", Status: check.StatusDenied,
				Issues: []check.Issue{{Description: "hardcoded key", Severity: check.SeverityCritical}}},
			{Check: "newline", Status: check.StatusApproved},
		},
		Overall:   check.StatusDenied,
		CreatedAt: time.Now(),
	}
}

func TestDispatchFansOutToAllNotifiers(t *testing.T) {
	a := &fakeNotifier{name: "a"}
	b := &fakeNotifier{name: "b"}
	d := New([]notify.Notifier{a, b}, nil, nil, testLogger())

	d.Dispatch(context.Background(), deniedResult())
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
}

func TestDispatchNotifierFailureIsIsolated(t *testing.T) {
	failing := &fakeNotifier{name: "failing", err: errors.New("boom")}
	healthy := &fakeNotifier{name: "healthy"}
	d := New([]notify.Notifier{failing, healthy}, nil, nil, testLogger())

	d.Dispatch(context.Background(), deniedResult())
	assert.Equal(t, 1, healthy.count(), "one sink failing must not block another")
}

func TestDispatchActionExactlyOncePerTuple(t *testing.T) {
	st := testStore(t)
	action := &fakeAction{ref: "TICKET-1"}
	d := New(nil, []Rule{{
		Name:     "ticket",
		Statuses: []check.Status{check.StatusDenied},
		Action:   action,
	}}, st, testLogger())

	res := deniedResult()
	d.Dispatch(context.Background(), res)
	d.Dispatch(context.Background(), res)

	assert.Equal(t, 1, action.count(), "unchanged result must not re-trigger the action")

	ref, err := st.ActionReference(context.Background(),
		"src/api.go", "security", res.Event.Fingerprint.String())
	require.NoError(t, err)
	assert.Equal(t, "TICKET-1", ref)
}

func TestDispatchDeletedEventsActPerRun(t *testing.T) {
	st := testStore(t)
	action := &fakeAction{ref: "TICKET-1"}
	d := New(nil, []Rule{{
		Name:     "ticket",
		Statuses: []check.Status{check.StatusDenied},
		Action:   action,
	}}, st, testLogger())

	deleted := func(id string) *engine.AggregateResult {
		res := deniedResult()
		res.ID = id
		res.Event.Kind = event.KindDeleted
		res.Event.Fingerprint = event.Fingerprint{}
		return res
	}

	first := deleted("run-1")
	d.Dispatch(context.Background(), first)
	d.Dispatch(context.Background(), first)
	assert.Equal(t, 1, action.count(), "re-dispatching one deletion stays idempotent")

	d.Dispatch(context.Background(), deleted("run-2"))
	assert.Equal(t, 2, action.count(), "a later distinct deletion of the same path still acts")
}

func TestDispatchActionRetriesAfterFailure(t *testing.T) {
	st := testStore(t)
	action := &fakeAction{ref: "TICKET-2", err: errors.New("tracker down")}
	d := New(nil, []Rule{{
		Name:     "ticket",
		Statuses: []check.Status{check.StatusDenied},
		Action:   action,
	}}, st, testLogger())

	res := deniedResult()
	d.Dispatch(context.Background(), res)
	require.Equal(t, 1, action.count())

	// Failure released the reservation; the next dispatch retries.
	action.mu.Lock()
	action.err = nil
	action.mu.Unlock()
	d.Dispatch(context.Background(), res)
	assert.Equal(t, 2, action.count())

	ref, err := st.ActionReference(context.Background(),
		"src/api.go", "security", res.Event.Fingerprint.String())
	require.NoError(t, err)
	assert.Equal(t, "TICKET-2", ref)
}

func TestDispatchContentChangeRetriggersAction(t *testing.T) {
	st := testStore(t)
	action := &fakeAction{ref: "TICKET-3"}
	d := New(nil, []Rule{{
		Name:     "ticket",
		Statuses: []check.Status{check.StatusDenied},
		Action:   action,
	}}, st, testLogger())

	res := deniedResult()
	d.Dispatch(context.Background(), res)

	changed := deniedResult()
	changed.Event.Fingerprint = event.FingerprintBytes([]byte("content-v2"))
	d.Dispatch(context.Background(), changed)

	assert.Equal(t, 2, action.count(), "new content fingerprint is a new tuple")
}

func TestDispatchRuleStatusFilter(t *testing.T) {
	st := testStore(t)
	action := &fakeAction{ref: "TICKET-4"}
	d := New(nil, []Rule{{
		Name:     "ticket",
		Statuses: []check.Status{check.StatusDenied},
		Action:   action,
	}}, st, testLogger())

	res := deniedResult()
	res.Overall = check.StatusApproved
	d.Dispatch(context.Background(), res)

	assert.Equal(t, 0, action.count(), "non-matching overall status must not trigger")
}

func TestDispatchOnlyQualifyingOutcomes(t *testing.T) {
	st := testStore(t)
	action := &fakeAction{ref: "TICKET-5"}
	d := New(nil, []Rule{{
		Name:     "ticket",
		Statuses: []check.Status{check.StatusDenied},
		Action:   action,
	}}, st, testLogger())

	// Denied overall, but only one of the two outcomes qualifies.
	d.Dispatch(context.Background(), deniedResult())
	assert.Equal(t, 1, action.count(), "approved sibling outcomes are skipped")
}
