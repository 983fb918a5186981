package store

import "context"

// InsertNotification records a notification attempt, deduped by
// event_id — the notifier's at-least-once-but-not-more-than-tracked
// safety invariant.
func (s *Store) InsertNotification(ctx context.Context, n Notification) (inserted bool, err error) {
	tag, err := s.db.Pool.Exec(ctx, `
		INSERT INTO notifications (event_id, stream, message_id, severity, text, status, attempts, next_attempt_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING
	`, n.EventID, n.Stream, n.MessageID, n.Severity, n.Text, n.Status, n.Attempts, n.NextAttemptAt, n.LastError)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSent flips a notification to SENT.
func (s *Store) MarkSent(ctx context.Context, eventID string) error {
	_, err := s.db.Pool.Exec(ctx, `UPDATE notifications SET status = 'SENT' WHERE event_id = $1`, eventID)
	return err
}

// MarkRetry bumps attempts, records the failure, and schedules the next
// attempt — used by the notifier's persistent retry loop.
func (s *Store) MarkRetry(ctx context.Context, eventID string, nextAttemptAtMs int64, lastError string) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE notifications SET attempts = attempts + 1, next_attempt_at = $1, last_error = $2, status = 'RETRYING'
		WHERE event_id = $3
	`, nextAttemptAtMs, lastError, eventID)
	return err
}

// ListDue returns notifications whose next_attempt_at has passed (or was
// never set), ready for the notifier to (re)send.
func (s *Store) ListDue(ctx context.Context, nowMs int64) ([]Notification, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT event_id, stream, message_id, severity, text, status, attempts, next_attempt_at, last_error
		FROM notifications
		WHERE status IN ('PENDING', 'RETRYING') AND (next_attempt_at IS NULL OR next_attempt_at <= $1)
		ORDER BY event_id ASC
	`, nowMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.EventID, &n.Stream, &n.MessageID, &n.Severity, &n.Text, &n.Status, &n.Attempts, &n.NextAttemptAt, &n.LastError); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}
