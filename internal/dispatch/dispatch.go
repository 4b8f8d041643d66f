// Package dispatch fans a completed aggregate result out to notification
// sinks and to idempotent external actions.
//
// Notifiers are best-effort and independent: each gets its own goroutine
// and its failure is logged, never propagated. External actions are
// guarded by durable idempotency records keyed by (path, check, content
// fingerprint), so re-dispatching the same unchanged result cannot create
// a duplicate remote ticket.
package dispatch

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/engine"
	"github.com/roach88/bouncer/internal/notify"
	"github.com/roach88/bouncer/internal/store"
)

// ExternalAction creates one remote side effect (ticket, PR) for one
// qualifying outcome. Apply must be safely retryable: the dispatcher
// releases the idempotency reservation on failure and retries on the
// next dispatch of the same tuple.
type ExternalAction interface {
	Name() string
	Apply(ctx context.Context, res *engine.AggregateResult, outcome check.Outcome) (reference string, err error)
}

// Rule binds an action to the overall statuses that trigger it.
type Rule struct {
	Name     string
	Statuses []check.Status
	Action   ExternalAction
}

// matches reports whether the rule fires for an overall status.
func (r Rule) matches(s check.Status) bool {
	for _, want := range r.Statuses {
		if s == want {
			return true
		}
	}
	return false
}

// Dispatcher implements engine.Dispatcher.
type Dispatcher struct {
	notifiers   []notify.Notifier
	rules       []Rule
	store       *store.Store
	logger      *slog.Logger
	sendTimeout time.Duration
}

// New creates a dispatcher. store may be nil only when no rules are
// configured.
func New(notifiers []notify.Notifier, rules []Rule, st *store.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		notifiers:   notifiers,
		rules:       rules,
		store:       st,
		logger:      logger,
		sendTimeout: time.Minute,
	}
}

// Dispatch delivers one result. Never returns an error: every failure is
// local to one sink or one action and is logged where it happens.
func (d *Dispatcher) Dispatch(ctx context.Context, res *engine.AggregateResult) {
	var wg sync.WaitGroup
	for _, n := range d.notifiers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()
			if err := n.Send(nctx, res); err != nil {
				d.logger.Warn("notification failed", "notifier", n.Name(),
					"path", res.Event.Path, "error", err)
			}
		}()
	}
	wg.Wait()

	for _, rule := range d.rules {
		if rule.matches(res.Overall) {
			d.applyRule(ctx, rule, res)
		}
	}
}

// applyRule triggers the action for every qualifying outcome, once per
// (path, check, fingerprint) tuple ever.
func (d *Dispatcher) applyRule(ctx context.Context, rule Rule, res *engine.AggregateResult) {
	fp := res.Event.Fingerprint.String()
	if res.Event.Fingerprint.IsZero() {
		// Deleted and renamed events carry no content fingerprint. Key on
		// the event kind plus run ID so re-dispatching one result stays
		// idempotent while later deletions of the same path still act.
		fp = string(res.Event.Kind) + ":" + res.ID
	}

	for _, out := range res.Outcomes {
		if !qualifies(out) {
			continue
		}

		path := res.Event.Path

		reserved, err := d.store.ReserveAction(ctx, path, out.Check, fp)
		if err != nil {
			d.logger.Error("action reservation failed", "rule", rule.Name,
				"path", path, "check", out.Check, "error", err)
			continue
		}
		if !reserved {
			d.logger.Debug("action already taken", "rule", rule.Name,
				"path", path, "check", out.Check)
			continue
		}

		ref, err := rule.Action.Apply(ctx, res, out)
		if err != nil {
			// Release so the tuple stays retryable on the next dispatch.
			if relErr := d.store.ReleaseAction(ctx, path, out.Check, fp); relErr != nil {
				d.logger.Error("action release failed", "rule", rule.Name,
					"path", path, "check", out.Check, "error", relErr)
			}
			d.logger.Warn("action failed", "rule", rule.Name, "action", rule.Action.Name(),
				"path", path, "check", out.Check, "error", err)
			continue
		}

		if err := d.store.CompleteAction(ctx, path, out.Check, fp, ref); err != nil {
			d.logger.Error("action completion record failed", "rule", rule.Name,
				"path", path, "check", out.Check, "error", err)
			continue
		}
		d.logger.Info("action taken", "rule", rule.Name, "action", rule.Action.Name(),
			"path", path, "check", out.Check, "reference", ref)
	}
}

// qualifies reports whether an outcome warrants an external action: a
// denial, a warning, or any recorded issue.
func qualifies(out check.Outcome) bool {
	switch out.Status {
	case check.StatusDenied, check.StatusWarning:
		return true
	}
	return len(out.Issues) > 0
}
