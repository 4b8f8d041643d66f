package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Action record states. A reservation is taken before the external call;
// only a completed record carries the remote reference. Failed calls
// release the reservation so the tuple stays retryable.
const (
	actionReserved  = "reserved"
	actionCompleted = "completed"
)

// ReserveAction atomically claims the (path, check, fingerprint) tuple for
// an external side effect. Returns true only for the first caller; every
// later reservation of the same tuple returns false, which is how
// re-dispatching an unchanged result is prevented from creating a
// duplicate remote ticket.
func (s *Store) ReserveAction(ctx context.Context, path, checkName, fingerprint string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO action_records (path, check_name, fingerprint, state, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, path, checkName, fingerprint, actionReserved, time.Now().UnixMilli())
	if err != nil {
		return false, fmt.Errorf("reserve action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve action: %w", err)
	}
	return n == 1, nil
}

// CompleteAction records the remote reference for a reserved tuple.
func (s *Store) CompleteAction(ctx context.Context, path, checkName, fingerprint, reference string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE action_records SET state = ?, reference = ?
		WHERE path = ? AND check_name = ? AND fingerprint = ?
	`, actionCompleted, reference, path, checkName, fingerprint)
	if err != nil {
		return fmt.Errorf("complete action: %w", err)
	}
	return nil
}

// ReleaseAction drops a reservation whose external call failed, making the
// tuple eligible for retry on the next dispatch. Completed records are
// never released.
func (s *Store) ReleaseAction(ctx context.Context, path, checkName, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM action_records
		WHERE path = ? AND check_name = ? AND fingerprint = ? AND state = ?
	`, path, checkName, fingerprint, actionReserved)
	if err != nil {
		return fmt.Errorf("release action: %w", err)
	}
	return nil
}

// ActionReference returns the recorded remote reference for a completed
// tuple, or "" when none exists.
func (s *Store) ActionReference(ctx context.Context, path, checkName, fingerprint string) (string, error) {
	var ref string
	err := s.db.QueryRowContext(ctx, `
		SELECT reference FROM action_records
		WHERE path = ? AND check_name = ? AND fingerprint = ? AND state = ?
	`, path, checkName, fingerprint, actionCompleted).Scan(&ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("action reference: %w", err)
	}
	return ref, nil
}
