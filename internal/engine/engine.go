package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
	"github.com/roach88/bouncer/internal/store"
)

// DefaultCheckTimeout bounds one check invocation when the configuration
// does not set one.
const DefaultCheckTimeout = 90 * time.Second

// DefaultMaxConcurrent bounds concurrently running check tasks across all
// paths. Each task typically performs a slow, rate-limited, possibly-paid
// external call, so the bound is global, not per path.
const DefaultMaxConcurrent = 8

// Dispatcher receives completed aggregate results. Implemented by the
// dispatch package; dispatch failures are its own concern and never
// propagate back into a run.
type Dispatcher interface {
	Dispatch(ctx context.Context, res *AggregateResult)
}

// Engine is the orchestrator: it consumes debounced events, selects
// applicable checks, runs them under the path lock, aggregates verdicts,
// appends an audit record, and forwards the aggregate to the dispatcher.
//
// Per-path state machine: idle → debouncing → running → idle. A new
// event arriving while running queues on the path lock and runs next;
// two runs for one path never overlap.
type Engine struct {
	registry   *check.Registry
	store      *store.Store
	dispatcher Dispatcher
	logger     *slog.Logger

	locks        *lockTable
	guard        *WriteGuard
	clock        *Clock
	sem          *semaphore.Weighted
	checkTimeout time.Duration
	reportOnly   bool
	maxFileSize  int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithCheckTimeout sets the per-check timeout.
func WithCheckTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.checkTimeout = d
		}
	}
}

// WithMaxConcurrent sets the global bound on concurrent check tasks.
func WithMaxConcurrent(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithClock sets a pre-positioned clock. Used on startup to resume the
// audit seq from the store.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMaxFileSize caps the content handed to checks. Files above the cap
// are processed without content, like unreadable files.
func WithMaxFileSize(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxFileSize = n
		}
	}
}

// WithReportOnly suppresses fix application globally: side-effecting
// checks still run and their proposed fixes are recorded in the audit,
// but the watched files are never modified.
func WithReportOnly(on bool) Option {
	return func(e *Engine) { e.reportOnly = on }
}

// WithWriteGuard replaces the default write guard.
func WithWriteGuard(g *WriteGuard) Option {
	return func(e *Engine) { e.guard = g }
}

// New creates an engine. dispatcher may be nil (scan mode without
// notifications).
func New(registry *check.Registry, st *store.Store, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry:     registry,
		store:        st,
		dispatcher:   dispatcher,
		logger:       logger,
		locks:        newLockTable(),
		guard:        NewWriteGuard(0),
		clock:        NewClock(),
		sem:          semaphore.NewWeighted(DefaultMaxConcurrent),
		checkTimeout: DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run consumes debounced events until the channel closes or the context
// is cancelled. In-flight runs are waited for on the way out so the
// audit log is complete before return.
func (e *Engine) Run(ctx context.Context, events <-chan event.DebouncedEvent) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case dev, ok := <-events:
			if !ok {
				return nil
			}
			// The queue position is claimed here, on the consume loop,
			// so same-path events keep their arrival order even though
			// each run happens on its own goroutine.
			tk := e.locks.Enqueue(dev.Path)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := e.handle(ctx, dev, tk); err != nil && !errors.Is(err, context.Canceled) {
					e.logger.Error("run failed", "path", dev.Path, "error", err)
				}
			}()
		}
	}
}

// Handle processes one debounced event end to end.
//
// Returns (nil, nil) when no check is applicable. A check failure never
// surfaces here - it is recorded inside the aggregate - so a non-nil
// error means the run itself could not proceed (lock wait cancelled,
// audit append failed).
func (e *Engine) Handle(ctx context.Context, dev event.DebouncedEvent) (*AggregateResult, error) {
	return e.handle(ctx, dev, e.locks.Enqueue(dev.Path))
}

// handle runs one event whose queue position was already claimed.
func (e *Engine) handle(ctx context.Context, dev event.DebouncedEvent, tk *ticket) (*AggregateResult, error) {
	release, err := tk.Wait(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	applicable := e.registry.Applicable(dev.ChangeEvent)
	if len(applicable) == 0 {
		e.logger.Debug("no applicable checks", "path", dev.Path, "kind", dev.Kind)
		return nil, nil
	}

	e.logger.Info("processing", "path", dev.Path, "kind", dev.Kind,
		"coalesced", dev.CoalescedCount, "checks", len(applicable))

	content := e.readContent(dev.ChangeEvent)
	outcomes := e.runChecks(ctx, dev, applicable, content)

	res := &AggregateResult{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Seq:       e.clock.Next(),
		Event:     dev,
		Outcomes:  outcomes,
		Overall:   Aggregate(outcomes),
		CreatedAt: time.Now(),
	}

	// Lock freed before audit and dispatch: neither touches the file.
	release()

	// The audit append must survive shutdown - a cancelled run still
	// leaves a durable record.
	if err := e.store.AppendRun(context.WithoutCancel(ctx), res.record()); err != nil {
		return res, &RunError{
			Code:    ErrCodeStoreFailed,
			Message: "audit append failed",
			Path:    dev.Path,
			Err:     err,
		}
	}

	e.logger.Info("run complete", "path", dev.Path, "overall", res.Overall,
		"issues", res.IssueCount(), "fixes", res.FixCount())

	if e.dispatcher != nil {
		e.dispatcher.Dispatch(ctx, res)
	}
	return res, nil
}

// runChecks invokes the applicable checks and returns outcomes in
// registration order.
//
// Report-only checks run fully concurrently against the content snapshot.
// Side-effecting checks run on one goroutine, sequentially in
// registration order: each observes the file state left by the previous
// check's fix, and its own fix is applied before the next check starts.
// Fixes returned as full replacement content make any other schedule
// lose earlier edits.
func (e *Engine) runChecks(ctx context.Context, dev event.DebouncedEvent, applicable []check.Check, content []byte) []check.Outcome {
	outcomes := make([]check.Outcome, len(applicable))

	var g errgroup.Group
	var writers []int

	for i, c := range applicable {
		if c.Mode() == check.ModeSideEffecting {
			writers = append(writers, i)
			continue
		}
		g.Go(func() error {
			outcomes[i] = *e.runOne(ctx, c, dev, content)
			return nil
		})
	}

	if len(writers) > 0 {
		g.Go(func() error {
			current := content
			for _, i := range writers {
				c := applicable[i]
				out := e.runOne(ctx, c, dev, current)
				if !out.Failed() && len(out.Fixes) > 0 {
					if e.reportOnly {
						e.logger.Info("fix suppressed (report-only)",
							"check", c.Name(), "path", dev.Path)
					} else if next, ok := e.applyFix(c, dev, out); ok {
						current = next
					}
				}
				outcomes[i] = *out
			}
			return nil
		})
	}

	_ = g.Wait() // goroutines never return errors; failures live in outcomes
	return outcomes
}

// runOne invokes a single check under the global concurrency bound and
// the per-check timeout. Every failure mode (semaphore wait cancelled,
// timeout, error, panic, malformed outcome) collapses into a
// warning-status outcome so siblings and the aggregate are unaffected.
func (e *Engine) runOne(ctx context.Context, c check.Check, dev event.DebouncedEvent, content []byte) *check.Outcome {
	start := time.Now()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return e.failureOutcome(c, dev, time.Since(start), &RunError{
			Code: ErrCodeCheckFailed, Message: "cancelled awaiting slot",
			Path: dev.Path, Check: c.Name(), Err: err,
		})
	}
	defer e.sem.Release(1)

	cctx, cancel := context.WithTimeout(ctx, e.checkTimeout)
	defer cancel()

	out, err := runRecovered(cctx, c, check.Input{Event: dev.ChangeEvent, Content: content})
	dur := time.Since(start)

	switch {
	case err != nil:
		var re *RunError
		if !errors.As(err, &re) {
			code := ErrCodeCheckFailed
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded) {
				code = ErrCodeCheckTimeout
			}
			re = &RunError{Code: code, Message: err.Error(), Path: dev.Path, Check: c.Name(), Err: err}
		}
		return e.failureOutcome(c, dev, dur, re)
	case out == nil || !out.Status.Valid():
		return e.failureOutcome(c, dev, dur, &RunError{
			Code: ErrCodeCheckFailed, Message: "malformed outcome",
			Path: dev.Path, Check: c.Name(),
		})
	}

	out.Check = c.Name()
	out.Duration = dur
	return out
}

// failureOutcome records a check failure as a warning outcome with a
// failure marker (degraded-but-complete, never a silent gap).
func (e *Engine) failureOutcome(c check.Check, dev event.DebouncedEvent, dur time.Duration, err *RunError) *check.Outcome {
	e.logger.Warn("check failed", "check", c.Name(), "path", dev.Path, "error", err)
	return &check.Outcome{
		Check:    c.Name(),
		Status:   check.StatusWarning,
		Duration: dur,
		Err:      err,
	}
}

// runRecovered calls the check with a panic boundary.
func runRecovered(ctx context.Context, c check.Check, in check.Input) (out *check.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &RunError{
				Code:    ErrCodeCheckPanic,
				Message: fmt.Sprintf("panic: %v", r),
				Path:    in.Event.Path,
				Check:   c.Name(),
			}
		}
	}()
	return c.Run(ctx, in)
}

// readContent loads the file for events that still have content.
func (e *Engine) readContent(ev event.ChangeEvent) []byte {
	if ev.Kind == event.KindDeleted || ev.Kind == event.KindRenamed {
		return nil
	}
	if e.maxFileSize > 0 {
		if info, err := os.Stat(ev.Path); err == nil && info.Size() > e.maxFileSize {
			e.logger.Debug("file too large, skipping content",
				"path", ev.Path, "size", info.Size(), "max", e.maxFileSize)
			return nil
		}
	}
	content, err := os.ReadFile(ev.Path)
	if err != nil {
		e.logger.Debug("file not readable", "path", ev.Path, "error", err)
		return nil
	}
	return content
}
