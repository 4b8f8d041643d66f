package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/roach88/bouncer/internal/event"
)

// DedupKey identifies one investigated error fingerprint. Two log entries
// with the same message, source location, and line are the same error for
// dedup purposes regardless of when they were logged.
type DedupKey struct {
	Message string
	Source  string
	Line    int
}

// Hash returns the stable storage key: a BLAKE3 hex digest over the three
// fields with NUL separators (so "a"+"bc" and "ab"+"c" cannot collide).
func (k DedupKey) Hash() string {
	buf := make([]byte, 0, len(k.Message)+len(k.Source)+16)
	buf = append(buf, k.Message...)
	buf = append(buf, 0)
	buf = append(buf, k.Source...)
	buf = append(buf, 0)
	buf = strconv.AppendInt(buf, int64(k.Line), 10)
	return event.FingerprintBytes(buf).String()
}

// Seen reports whether the key has a durable record.
func (s *Store) Seen(ctx context.Context, key DedupKey) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_errors WHERE key = ?`, key.Hash()).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("seen: %w", err)
	}
}

// Record durably marks a key as investigated. Recording an already-present
// key is a no-op: INSERT OR IGNORE makes the insert atomic, so of two
// concurrent investigations exactly one wins and the other is absorbed.
func (s *Store) Record(ctx context.Context, key DedupKey, firstSeen time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO seen_errors (key, message, source, line, first_seen_at)
		VALUES (?, ?, ?, ?, ?)
	`, key.Hash(), key.Message, key.Source, key.Line, firstSeen.UnixMilli())
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	return nil
}

// Prune removes records first seen before olderThan and returns how many
// were evicted.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_errors WHERE first_seen_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}
