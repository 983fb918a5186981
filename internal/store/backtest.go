package store

import (
	"context"
	"encoding/json"
)

// BacktestTrade is one fully-closed paper/backtest position's realized
// outcome, written once a position's qty_open reaches zero.
type BacktestTrade struct {
	IdempotencyKey string
	Symbol         string
	Timeframe      string
	Side           string
	QtyTotal       float64
	EntryPrice     float64
	ExitPrice      float64
	PrimarySLPrice float64
	PnLQuote       float64
	PnLR           float64
	ExitReason     string
	OpenedAtMs     int64
	ClosedAtMs     int64
	Legs           json.RawMessage
}

// InsertBacktestTrade records one closed paper/backtest trade's realized
// outcome for later analysis (win rate, expectancy, R-distribution).
func (s *Store) InsertBacktestTrade(ctx context.Context, t BacktestTrade) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO backtest_trades (
			idempotency_key, symbol, timeframe, side, qty_total, entry_price, exit_price,
			primary_sl_price, pnl_quote, pnl_r, exit_reason, opened_at_ms, closed_at_ms, legs
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, t.IdempotencyKey, t.Symbol, t.Timeframe, t.Side, t.QtyTotal, t.EntryPrice, t.ExitPrice,
		t.PrimarySLPrice, t.PnLQuote, t.PnLR, t.ExitReason, t.OpenedAtMs, t.ClosedAtMs, t.Legs)
	return err
}

// WSEvent is one audited private-stream push.
type WSEvent struct {
	ID      int64
	Topic   string
	TsMs    int64
	Payload json.RawMessage
}

// InsertWSEvent audits one private-stream push before it is acted on.
func (s *Store) InsertWSEvent(ctx context.Context, e WSEvent) error {
	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO ws_events (topic, ts_ms, payload) VALUES ($1, $2, $3)
	`, e.Topic, e.TsMs, e.Payload)
	return err
}

// UpdateConsecutiveLossCount bumps (or resets) the running loss streak
// for (tradeDate, mode): isLoss=true increments, isLoss=false resets to
// zero. Returns the new count so callers can act on a streak threshold.
func (s *Store) UpdateConsecutiveLossCount(ctx context.Context, tradeDate, mode string, isLoss bool) (int, error) {
	if !isLoss {
		_, err := s.db.Pool.Exec(ctx, `
			INSERT INTO consecutive_loss_streaks (trade_date, mode, count) VALUES ($1, $2, 0)
			ON CONFLICT (trade_date, mode) DO UPDATE SET count = 0
		`, tradeDate, mode)
		return 0, err
	}
	var count int
	err := s.db.Pool.QueryRow(ctx, `
		INSERT INTO consecutive_loss_streaks (trade_date, mode, count) VALUES ($1, $2, 1)
		ON CONFLICT (trade_date, mode) DO UPDATE SET count = consecutive_loss_streaks.count + 1
		RETURNING count
	`, tradeDate, mode).Scan(&count)
	return count, err
}

// ListBacktestTrades returns the most recently closed paper/backtest
// trades (newest first), capped at limit — the API's read-only
// /backtest-trades query endpoint.
func (s *Store) ListBacktestTrades(ctx context.Context, limit int) ([]BacktestTrade, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT idempotency_key, symbol, timeframe, side, qty_total, entry_price, exit_price,
			primary_sl_price, pnl_quote, pnl_r, exit_reason, opened_at_ms, closed_at_ms, legs
		FROM backtest_trades ORDER BY closed_at_ms DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []BacktestTrade
	for rows.Next() {
		var t BacktestTrade
		if err := rows.Scan(&t.IdempotencyKey, &t.Symbol, &t.Timeframe, &t.Side, &t.QtyTotal, &t.EntryPrice, &t.ExitPrice,
			&t.PrimarySLPrice, &t.PnLQuote, &t.PnLR, &t.ExitReason, &t.OpenedAtMs, &t.ClosedAtMs, &t.Legs); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
