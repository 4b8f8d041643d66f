package checks

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/bouncer/internal/agent"
	"github.com/roach88/bouncer/internal/check"
	"github.com/roach88/bouncer/internal/event"
	"github.com/roach88/bouncer/internal/store"
)

// errorLine matches log lines worth investigating.
var errorLine = regexp.MustCompile(`(?i)\b(error|exception|panic|fatal)\b`)

// timestampPrefix strips leading timestamps and bracket noise so the same
// logical error logged at different times dedups to one fingerprint.
var timestampPrefix = regexp.MustCompile(`^[\d\-/:.,+TZz \[\]]+`)

// LogInvestigator parses log files into error entries and sends the ones
// not seen before to the reasoning service.
//
// Dedup contract: Seen is consulted per fingerprint before any expensive
// work; Record happens only after the service produced an outcome. A
// failure after seeing-but-before-recording leaves every fingerprint
// eligible for retry on the next run (at-least-once investigation,
// at-most-one durable record).
//
// track=false disables dedup entirely: every presentation of an error is
// investigated again.
type LogInvestigator struct {
	spec   *check.Spec
	client agent.Client
	store  *store.Store
	track  bool
}

// NewLogInvestigator creates the check. track mirrors the
// track_fixed_errors configuration flag.
func NewLogInvestigator(spec *check.Spec, client agent.Client, st *store.Store, track bool) *LogInvestigator {
	return &LogInvestigator{spec: spec, client: client, store: st, track: track}
}

func (l *LogInvestigator) Name() string                         { return "log_investigator" }
func (l *LogInvestigator) Mode() check.Mode                     { return check.ModeReportOnly }
func (l *LogInvestigator) Applicable(ev event.ChangeEvent) bool { return l.spec.Match(ev) }

func (l *LogInvestigator) Run(ctx context.Context, in check.Input) (*check.Outcome, error) {
	entries, keys := l.extract(in)
	if len(entries) == 0 {
		return &check.Outcome{Status: check.StatusApproved}, nil
	}

	// Filter already-investigated fingerprints before doing anything
	// expensive.
	var fresh []string
	var freshKeys []store.DedupKey
	for i, key := range keys {
		if l.track {
			seen, err := l.store.Seen(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("dedup lookup: %w", err)
			}
			if seen {
				continue
			}
		}
		fresh = append(fresh, entries[i])
		freshKeys = append(freshKeys, keys[i])
	}
	if len(fresh) == 0 {
		return &check.Outcome{Status: check.StatusApproved}, nil
	}

	verdict, err := l.client.Evaluate(ctx, agent.Request{
		System:  "You investigate application log errors and explain root causes.",
		Task:    fmt.Sprintf("Investigate %d new error entr(y/ies) from %s.", len(fresh), in.Event.Path),
		Payload: strings.Join(fresh, "\n"),
	})
	if err != nil {
		// Nothing recorded: these fingerprints stay eligible for retry.
		return nil, err
	}

	// Only after a successful outcome do the fingerprints become durable.
	now := time.Now()
	for _, key := range freshKeys {
		if err := l.store.Record(ctx, key, now); err != nil {
			return nil, fmt.Errorf("dedup record: %w", err)
		}
	}

	out := &check.Outcome{
		Status: verdict.Status,
		Issues: verdict.Issues,
	}
	if out.Status == "" {
		out.Status = check.StatusWarning
	}
	return out, nil
}

// extract parses the log content into investigable entries with their
// dedup keys, in file order.
func (l *LogInvestigator) extract(in check.Input) ([]string, []store.DedupKey) {
	var entries []string
	var keys []store.DedupKey

	scanner := bufio.NewScanner(bytes.NewReader(in.Content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !errorLine.MatchString(line) {
			continue
		}
		message := strings.TrimSpace(timestampPrefix.ReplaceAllString(line, ""))
		if message == "" {
			continue
		}
		entries = append(entries, line)
		keys = append(keys, store.DedupKey{
			Message: message,
			Source:  in.Event.Path,
			Line:    lineNo,
		})
	}
	return entries, keys
}
