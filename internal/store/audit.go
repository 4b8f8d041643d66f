package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RunRecord is one audit log entry: a completed orchestrator run.
// Outcomes are serialized as JSON in insertion (registration) order.
type RunRecord struct {
	ID          string
	Seq         int64
	Path        string
	Kind        string
	Fingerprint string
	Overall     string
	Outcomes    []OutcomeRecord
	CreatedAt   time.Time
}

// OutcomeRecord is the audit form of one check's outcome. Failure is the
// check's error text; an empty string means the check itself produced the
// verdict.
type OutcomeRecord struct {
	Check      string        `json:"check"`
	Status     string        `json:"status"`
	Issues     []IssueRecord `json:"issues,omitempty"`
	Fixes      []string      `json:"fixes,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	Failure    string        `json:"failure,omitempty"`
}

// IssueRecord is the audit form of one issue.
type IssueRecord struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Line        int    `json:"line,omitempty"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// AppendRun inserts an audit record. The log is append-only; duplicate
// run IDs are silently ignored so a retried append stays idempotent.
func (s *Store) AppendRun(ctx context.Context, rec RunRecord) error {
	outcomesJSON, err := json.Marshal(rec.Outcomes)
	if err != nil {
		return fmt.Errorf("append run: marshal outcomes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_runs
		(id, seq, path, kind, fingerprint, overall, outcomes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.Path,
		rec.Kind,
		rec.Fingerprint,
		rec.Overall,
		string(outcomesJSON),
		rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

// RunsByPath returns audit records for a path within [since, until],
// ordered by seq. Zero time bounds mean unbounded on that side.
func (s *Store) RunsByPath(ctx context.Context, path string, since, until time.Time) ([]RunRecord, error) {
	lo := int64(0)
	hi := int64(1<<63 - 1)
	if !since.IsZero() {
		lo = since.UnixMilli()
	}
	if !until.IsZero() {
		hi = until.UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, path, kind, fingerprint, overall, outcomes, created_at
		FROM audit_runs
		WHERE path = ? AND created_at >= ? AND created_at <= ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, path, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var outcomesJSON string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Path, &rec.Kind,
			&rec.Fingerprint, &rec.Overall, &outcomesJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(outcomesJSON), &rec.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal outcomes for run %s: %w", rec.ID, err)
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
