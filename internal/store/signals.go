package store

import "context"

// InsertSignal persists a detected setup, returning inserted=false when
// idempotency_key already existed — an ON CONFLICT DO NOTHING upsert so
// a redelivered bar_close never produces a duplicate signal.
func (s *Store) InsertSignal(ctx context.Context, sig Signal) (inserted bool, err error) {
	tag, err := s.db.Pool.Exec(ctx, `
		INSERT INTO signals (idempotency_key, symbol, timeframe, close_time_ms, bias, vegas_state, payload, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, sig.IdempotencyKey, sig.Symbol, sig.Timeframe, sig.CloseTimeMs, sig.Bias, sig.VegasState, sig.Payload, sig.CreatedAtMs)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetSignal fetches a signal by idempotency_key, returning ok=false if
// absent.
func (s *Store) GetSignal(ctx context.Context, idempotencyKey string) (Signal, bool, error) {
	var sig Signal
	err := s.db.Pool.QueryRow(ctx, `
		SELECT idempotency_key, symbol, timeframe, close_time_ms, bias, vegas_state, payload, created_at_ms
		FROM signals WHERE idempotency_key = $1
	`, idempotencyKey).Scan(&sig.IdempotencyKey, &sig.Symbol, &sig.Timeframe, &sig.CloseTimeMs, &sig.Bias, &sig.VegasState, &sig.Payload, &sig.CreatedAtMs)
	if err != nil {
		if isNoRows(err) {
			return Signal{}, false, nil
		}
		return Signal{}, false, err
	}
	return sig, true, nil
}
