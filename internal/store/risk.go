package store

import "context"

// GetOrCreateRiskState returns today's risk row, creating it seeded from
// startingEquity if this is the first touch of the trading day.
func (s *Store) GetOrCreateRiskState(ctx context.Context, tradeDate string, startingEquity float64) (RiskState, error) {
	var rs RiskState
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO risk_states (trade_date, starting_equity, current_equity, min_equity, max_equity)
		VALUES ($1, $2, $2, $2, $2)
		ON CONFLICT (trade_date) DO UPDATE SET trade_date = excluded.trade_date
		RETURNING trade_date, starting_equity, current_equity, min_equity, max_equity,
			drawdown_pct, soft_halt, hard_halt, kill_switch, meta
	`, tradeDate, startingEquity).Scan(&rs.TradeDate, &rs.StartingEquity, &rs.CurrentEquity, &rs.MinEquity, &rs.MaxEquity,
		&rs.DrawdownPct, &rs.SoftHalt, &rs.HardHalt, &rs.KillSwitch, &rs.Meta)
	return rs, err
}

// UpdateRiskState persists the mutable fields of a risk_states row after
// an equity mark-to-market or halt transition.
func (s *Store) UpdateRiskState(ctx context.Context, rs RiskState) error {
	_, err := s.db.Pool.Exec(ctx, `
		UPDATE risk_states SET
			current_equity = $1, min_equity = $2, max_equity = $3, drawdown_pct = $4,
			soft_halt = $5, hard_halt = $6, kill_switch = $7, meta = $8
		WHERE trade_date = $9
	`, rs.CurrentEquity, rs.MinEquity, rs.MaxEquity, rs.DrawdownPct,
		rs.SoftHalt, rs.HardHalt, rs.KillSwitch, rs.Meta, rs.TradeDate)
	return err
}

// UpsertCooldown sets (or extends) a cooldown window for a
// (symbol, side, timeframe, reason) combination.
func (s *Store) UpsertCooldown(ctx context.Context, c Cooldown) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO cooldowns (symbol, side, timeframe, reason, until_ts_ms)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol, side, timeframe, reason) DO UPDATE SET until_ts_ms = excluded.until_ts_ms
	`, c.Symbol, c.Side, c.Timeframe, c.Reason, c.UntilTsMs)
	return err
}

// ActiveCooldown returns the cooldown row for this combo if untilTsMs
// (its expiry) is still in the future as of nowMs, else ok=false — the
// admission pipeline's cooldown-blocking check.
func (s *Store) ActiveCooldown(ctx context.Context, symbol, side, timeframe, reason string, nowMs int64) (Cooldown, bool, error) {
	var c Cooldown
	err := s.db.Pool.QueryRow(ctx, `
		SELECT symbol, side, timeframe, reason, until_ts_ms
		FROM cooldowns WHERE symbol = $1 AND side = $2 AND timeframe = $3 AND reason = $4 AND until_ts_ms > $5
	`, symbol, side, timeframe, reason, nowMs).Scan(&c.Symbol, &c.Side, &c.Timeframe, &c.Reason, &c.UntilTsMs)
	if err != nil {
		if isNoRows(err) {
			return Cooldown{}, false, nil
		}
		return Cooldown{}, false, err
	}
	return c, true, nil
}

// ListRiskStates returns the most recent trade-day risk rows (newest
// first), capped at limit — the API's read-only /risk query endpoint.
func (s *Store) ListRiskStates(ctx context.Context, limit int) ([]RiskState, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT trade_date, starting_equity, current_equity, min_equity, max_equity,
			drawdown_pct, soft_halt, hard_halt, kill_switch, meta
		FROM risk_states ORDER BY trade_date DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RiskState
	for rows.Next() {
		var rs RiskState
		if err := rows.Scan(&rs.TradeDate, &rs.StartingEquity, &rs.CurrentEquity, &rs.MinEquity, &rs.MaxEquity,
			&rs.DrawdownPct, &rs.SoftHalt, &rs.HardHalt, &rs.KillSwitch, &rs.Meta); err != nil {
			return nil, err
		}
		res = append(res, rs)
	}
	return res, rows.Err()
}

// GetFlag reads a runtime flag's value, returning ok=false if unset.
func (s *Store) GetFlag(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.db.Pool.QueryRow(ctx, `SELECT value FROM runtime_flags WHERE name = $1`, name).Scan(&value)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// SetFlag sets (or overwrites) a runtime flag — the mechanism the API's
// admin kill-switch endpoint uses to flip the kill switch without
// redeploying.
func (s *Store) SetFlag(ctx context.Context, name, value string) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO runtime_flags (name, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = now()
	`, name, value)
	return err
}
