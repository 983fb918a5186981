package store

import "context"

// InsertTrace appends a lifecycle stage marker for incident replay. The
// api service exposes no trace query endpoint.
func (s *Store) InsertTrace(ctx context.Context, t Trace) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO traces (trace_id, idempotency_key, ts_ms, stage, detail)
		VALUES ($1, $2, $3, $4, $5)
	`, t.TraceID, t.IdempotencyKey, t.TsMs, t.Stage, t.Detail)
	return err
}

// ListTraceByIdempotencyKey returns every stage recorded for a plan, in
// chronological order.
func (s *Store) ListTraceByIdempotencyKey(ctx context.Context, idempotencyKey string) ([]Trace, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, trace_id, idempotency_key, ts_ms, stage, detail
		FROM traces WHERE idempotency_key = $1 ORDER BY ts_ms ASC
	`, idempotencyKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Trace
	for rows.Next() {
		var t Trace
		if err := rows.Scan(&t.ID, &t.TraceID, &t.IdempotencyKey, &t.TsMs, &t.Stage, &t.Detail); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
