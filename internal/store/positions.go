package store

import "context"

// ForceClosePosition marks an OPEN position CLOSED out of band (operator
// intervention via cmd/opctl's force-close and fix-stale commands), zeroing qty_runner and
// stamping closed_at_ms/exit_reason the same way the execution service's
// own close path does, so downstream readers can't tell the two apart.
func (s *Store) ForceClosePosition(ctx context.Context, idempotencyKey, exitReason string, closedAtMs int64) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE positions
		SET status = 'CLOSED', qty_runner = 0, closed_at_ms = $2, exit_reason = $3,
			meta = jsonb_set(coalesce(meta, '{}'::jsonb), '{qty_open}', '0', true)
		WHERE idempotency_key = $1 AND status != 'CLOSED'
	`, idempotencyKey, closedAtMs, exitReason)
	return err
}

// SetPositionQtyOpen repairs a drifted meta.qty_open field (e.g. after a
// missed fill event) without touching any other column.
func (s *Store) SetPositionQtyOpen(ctx context.Context, idempotencyKey string, qtyOpen float64) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE positions
		SET meta = jsonb_set(coalesce(meta, '{}'::jsonb), '{qty_open}', to_jsonb($2::float8), true)
		WHERE idempotency_key = $1
	`, idempotencyKey, qtyOpen)
	return err
}

// UpsertPosition inserts or updates the full position row keyed by the
// originating plan's idempotency_key — a position's identity is always
// the plan that opened it.
func (s *Store) UpsertPosition(ctx context.Context, p Position) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO positions (
			idempotency_key, symbol, timeframe, side, bias, qty_total, qty_runner, entry_price,
			primary_sl_price, runner_stop_price, status, entry_close_time_ms, opened_at_ms,
			closed_at_ms, exit_reason, secondary_rule_checked, hist_entry, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			qty_total = excluded.qty_total,
			qty_runner = excluded.qty_runner,
			runner_stop_price = excluded.runner_stop_price,
			status = excluded.status,
			closed_at_ms = excluded.closed_at_ms,
			exit_reason = excluded.exit_reason,
			secondary_rule_checked = excluded.secondary_rule_checked,
			meta = excluded.meta
	`, p.IdempotencyKey, p.Symbol, p.Timeframe, p.Side, p.Bias, p.QtyTotal, p.QtyRunner, p.EntryPrice,
		p.PrimarySLPrice, p.RunnerStopPrice, p.Status, p.EntryCloseTimeMs, p.OpenedAtMs,
		p.ClosedAtMs, p.ExitReason, p.SecondaryRuleChecked, p.HistEntry, p.Meta)
	return err
}

// GetPosition fetches a position by its idempotency_key.
func (s *Store) GetPosition(ctx context.Context, idempotencyKey string) (Position, bool, error) {
	var p Position
	err := s.db.Pool.QueryRow(ctx, `
		SELECT idempotency_key, symbol, timeframe, side, bias, qty_total, qty_runner, entry_price,
			primary_sl_price, runner_stop_price, status, entry_close_time_ms, opened_at_ms,
			closed_at_ms, exit_reason, secondary_rule_checked, hist_entry, meta
		FROM positions WHERE idempotency_key = $1
	`, idempotencyKey).Scan(&p.IdempotencyKey, &p.Symbol, &p.Timeframe, &p.Side, &p.Bias, &p.QtyTotal, &p.QtyRunner, &p.EntryPrice,
		&p.PrimarySLPrice, &p.RunnerStopPrice, &p.Status, &p.EntryCloseTimeMs, &p.OpenedAtMs,
		&p.ClosedAtMs, &p.ExitReason, &p.SecondaryRuleChecked, &p.HistEntry, &p.Meta)
	if err != nil {
		if isNoRows(err) {
			return Position{}, false, nil
		}
		return Position{}, false, err
	}
	return p, true, nil
}

// ListOpenPositions returns every position not yet CLOSED, optionally
// filtered to one symbol (empty string means all symbols) — used by both
// the admission pipeline's max-open-positions check and opctl's listing.
func (s *Store) ListOpenPositions(ctx context.Context, symbol string) ([]Position, error) {
	query := `
		SELECT idempotency_key, symbol, timeframe, side, bias, qty_total, qty_runner, entry_price,
			primary_sl_price, runner_stop_price, status, entry_close_time_ms, opened_at_ms,
			closed_at_ms, exit_reason, secondary_rule_checked, hist_entry, meta
		FROM positions WHERE status != 'CLOSED'`
	args := []any{}
	if symbol != "" {
		query += " AND symbol = $1"
		args = append(args, symbol)
	}

	rows, err := s.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.IdempotencyKey, &p.Symbol, &p.Timeframe, &p.Side, &p.Bias, &p.QtyTotal, &p.QtyRunner, &p.EntryPrice,
			&p.PrimarySLPrice, &p.RunnerStopPrice, &p.Status, &p.EntryCloseTimeMs, &p.OpenedAtMs,
			&p.ClosedAtMs, &p.ExitReason, &p.SecondaryRuleChecked, &p.HistEntry, &p.Meta); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// ListPositions returns the most recently opened positions (newest
// first), regardless of status, capped at limit — the API's read-only
// /positions history query endpoint (ListOpenPositions above serves the
// live-only view the admission pipeline and opctl need).
func (s *Store) ListPositions(ctx context.Context, limit int) ([]Position, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT idempotency_key, symbol, timeframe, side, bias, qty_total, qty_runner, entry_price,
			primary_sl_price, runner_stop_price, status, entry_close_time_ms, opened_at_ms,
			closed_at_ms, exit_reason, secondary_rule_checked, hist_entry, meta
		FROM positions ORDER BY opened_at_ms DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.IdempotencyKey, &p.Symbol, &p.Timeframe, &p.Side, &p.Bias, &p.QtyTotal, &p.QtyRunner, &p.EntryPrice,
			&p.PrimarySLPrice, &p.RunnerStopPrice, &p.Status, &p.EntryCloseTimeMs, &p.OpenedAtMs,
			&p.ClosedAtMs, &p.ExitReason, &p.SecondaryRuleChecked, &p.HistEntry, &p.Meta); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
