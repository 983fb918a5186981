package store

import "context"

// InsertBar upserts a closed bar. Re-ingesting the same (symbol,
// timeframe, close_time_ms) from a gap-fill backfill is expected and
// simply overwrites the row with the authoritative OHLCV.
func (s *Store) InsertBar(ctx context.Context, b Bar) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO bars (symbol, timeframe, close_time_ms, open_time_ms, open, high, low, close, volume, turnover, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, timeframe, close_time_ms) DO UPDATE SET
			open_time_ms = excluded.open_time_ms,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			turnover = excluded.turnover,
			source = excluded.source
	`, b.Symbol, b.Timeframe, b.CloseTimeMs, b.OpenTimeMs, b.Open, b.High, b.Low, b.Close, b.Volume, b.Turnover, b.Source)
	return err
}

// ListBars returns up to limit closed bars for (symbol, timeframe) in
// ascending close_time_ms order, the shape the indicator layer expects.
func (s *Store) ListBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT symbol, timeframe, close_time_ms, open_time_ms, open, high, low, close, volume, turnover, source
		FROM bars
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY close_time_ms DESC
		LIMIT $3
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Symbol, &b.Timeframe, &b.CloseTimeMs, &b.OpenTimeMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Turnover, &b.Source); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse to ascending close_time_ms
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

// LatestBarCloseTime returns the close_time_ms of the newest stored bar
// for (symbol, timeframe), or 0 if none exists — the gap-detector's
// baseline for deciding whether a backfill is needed.
func (s *Store) LatestBarCloseTime(ctx context.Context, symbol, timeframe string) (int64, error) {
	var closeTimeMs int64
	err := s.db.Pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(close_time_ms), 0) FROM bars WHERE symbol = $1 AND timeframe = $2
	`, symbol, timeframe).Scan(&closeTimeMs)
	return closeTimeMs, err
}

// InsertBarCloseEmit records that bar_close was published for this bar,
// returning inserted=false when the row already existed (an idempotent
// no-op, same pattern as InsertSignal).
func (s *Store) InsertBarCloseEmit(ctx context.Context, e BarCloseEmit) (inserted bool, err error) {
	tag, err := s.db.Pool.Exec(ctx, `
		INSERT INTO bar_close_emits (symbol, timeframe, close_time_ms, event_id, emitted_at_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, timeframe, close_time_ms) DO NOTHING
	`, e.Symbol, e.Timeframe, e.CloseTimeMs, e.EventID, e.EmittedAtMs)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
