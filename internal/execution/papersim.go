package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

// paperMeta is the mutable paper/backtest simulator state carried in
// positions.meta, between admission (which seeds it) and every
// subsequent bar-close fill check. Kept in the DB rather than
// in-process so a restart resumes mid-position.
type paperMeta struct {
	QtyOpen      float64 `json:"qty_open"`
	TP1Filled    bool    `json:"tp1_filled"`
	TP2Filled    bool    `json:"tp2_filled"`
	Mode         string  `json:"mode"`
	RunID        string  `json:"run_id"`
	TP1Qty       float64 `json:"tp1_qty"`
	TP2Qty       float64 `json:"tp2_qty"`
	TP1Price     float64 `json:"tp1_price"`
	TP2Price     float64 `json:"tp2_price"`
	ExitNotional float64 `json:"exit_notional"` // sum(qty*price) across legs filled so far
	ExitQty      float64 `json:"exit_qty"`

	// RunnerStopApplied tracks, for LIVE reconcile only, whether the
	// runner's stop has already been pushed to the exchange after TP2 —
	// without this the reconcile loop would resubmit set-trading-stop
	// every ~5s pass for as long as the runner stays open.
	RunnerStopApplied bool `json:"runner_stop_applied"`
}

func marshalMeta(m paperMeta) (json.RawMessage, error) {
	return json.Marshal(m)
}

func decodePaperMeta(raw json.RawMessage) paperMeta {
	var m paperMeta
	_ = json.Unmarshal(raw, &m)
	return m
}

// intraBarPath is the deterministic price path a bar's OHLC is assumed
// to have traveled, used to decide fill order when multiple levels sit
// inside one bar: a bullish-closing (or flat) bar is assumed to have
// rallied to the high before dipping to the low, and a bearish-closing
// bar to have dipped to the low before rallying to the high.
func intraBarPath(o events.OHLCV) []float64 {
	if o.Close >= o.Open {
		return []float64{o.Open, o.High, o.Low, o.Close}
	}
	return []float64{o.Open, o.Low, o.High, o.Close}
}

// processPaperBarClose runs the paper/backtest matching simulator
// against every OPEN position on bar's (symbol, timeframe).
func (s *Service) processPaperBarClose(ctx context.Context, bar events.BarClosePayload) error {
	open, err := s.store.ListOpenPositions(ctx, bar.Symbol)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	for _, p := range open {
		if p.Timeframe != bar.Timeframe {
			continue
		}
		if err := s.simulatePositionFills(ctx, p, bar); err != nil {
			return fmt.Errorf("simulate fills for %s: %w", p.IdempotencyKey, err)
		}
	}
	return nil
}

// simulatePositionFills walks the bar's intra-bar price path, applying
// TP1 → TP2 → SL triggers in the order the path actually crosses them,
// with the effective SL ratcheted by each TP fill.
func (s *Service) simulatePositionFills(ctx context.Context, p store.Position, bar events.BarClosePayload) error {
	meta := decodePaperMeta(p.Meta)
	if meta.QtyOpen <= 0 {
		return nil
	}

	path := intraBarPath(bar.OHLCV)
	effSL := p.PrimarySLPrice
	if meta.TP2Filled && p.RunnerStopPrice != nil {
		effSL = *p.RunnerStopPrice
	} else if meta.TP1Filled {
		effSL = p.EntryPrice
	}

	exitReason := ""
	closed := false

	for seg := 0; seg+1 < len(path) && !closed; seg++ {
		a, b := path[seg], path[seg+1]
		rising := b >= a
		lo, hi := a, b
		if !rising {
			lo, hi = b, a
		}

		type candidate struct {
			kind  string
			price float64
		}
		var hits []candidate
		if !meta.TP1Filled && within(meta.TP1Price, lo, hi) {
			hits = append(hits, candidate{"tp1", meta.TP1Price})
		}
		if !meta.TP2Filled && within(meta.TP2Price, lo, hi) {
			hits = append(hits, candidate{"tp2", meta.TP2Price})
		}
		if within(effSL, lo, hi) {
			hits = append(hits, candidate{"sl", effSL})
		}
		sortByTravelOrder(hits, rising)

		for _, h := range hits {
			switch h.kind {
			case "tp1":
				meta.TP1Filled = true
				meta.ExitNotional += meta.TP1Qty * h.price
				meta.ExitQty += meta.TP1Qty
				meta.QtyOpen -= meta.TP1Qty
				effSL = p.EntryPrice
				s.markTPOrderFilled(ctx, p.IdempotencyKey, "tp1", h.price)
				s.publishExecutionReport(ctx, "", events.ExecutionReportPayload{
					PlanID: p.IdempotencyKey, Status: events.StatusTPHit, Symbol: p.Symbol, Timeframe: p.Timeframe,
					FilledQty: meta.TP1Qty, AvgPrice: h.price, Reason: "tp1",
				})
			case "tp2":
				meta.TP2Filled = true
				meta.ExitNotional += meta.TP2Qty * h.price
				meta.ExitQty += meta.TP2Qty
				meta.QtyOpen -= meta.TP2Qty
				if p.RunnerStopPrice != nil {
					effSL = *p.RunnerStopPrice
				}
				s.markTPOrderFilled(ctx, p.IdempotencyKey, "tp2", h.price)
				s.publishExecutionReport(ctx, "", events.ExecutionReportPayload{
					PlanID: p.IdempotencyKey, Status: events.StatusTPHit, Symbol: p.Symbol, Timeframe: p.Timeframe,
					FilledQty: meta.TP2Qty, AvgPrice: h.price, Reason: "tp2",
				})
			case "sl":
				remaining := meta.QtyOpen
				meta.ExitNotional += remaining * h.price
				meta.ExitQty += remaining
				meta.QtyOpen = 0
				if meta.TP1Filled {
					exitReason = "SECONDARY_SL_EXIT"
				} else {
					exitReason = "PRIMARY_SL_HIT"
				}
				closed = true
			}
			if closed {
				break
			}
		}
	}

	if meta.QtyOpen > 1e-12 && !closed {
		return s.persistPaperMeta(ctx, p, meta)
	}

	return s.finalizePaperPosition(ctx, p, meta, exitReason, bar.CloseTimeMs)
}

func within(level, lo, hi float64) bool {
	return level >= lo && level <= hi
}

// sortByTravelOrder orders same-segment candidate hits by the order the
// path actually reaches them: ascending price when the segment rises,
// descending when it falls.
func sortByTravelOrder(hits []struct {
	kind  string
	price float64
}, rising bool) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0; j-- {
			swap := false
			if rising {
				swap = hits[j].price < hits[j-1].price
			} else {
				swap = hits[j].price > hits[j-1].price
			}
			if !swap {
				break
			}
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}

func (s *Service) persistPaperMeta(ctx context.Context, p store.Position, meta paperMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	p.Meta = raw
	return s.store.UpsertPosition(ctx, p)
}

func (s *Service) markTPOrderFilled(ctx context.Context, idem, purpose string, price float64) {
	if o, found, err := s.store.GetOrderByIdempotency(ctx, idem, purpose); err == nil && found {
		_ = s.store.UpdateOrderFill(ctx, o.OrderID, "FILLED", o.Qty, price, nowMs())
	}
}

// finalizePaperPosition closes the position out, computes realized
// PnL/pnl_r against the original primary SL (the R-unit denominator is
// always the entry plan's stop, never whichever stop actually
// triggered the exit), writes the backtest_trade row, updates the
// day's consecutive-loss streak (driven by realized PnL sign, not
// which stop fired), and writes a cooldown only on a realized loss.
func (s *Service) finalizePaperPosition(ctx context.Context, p store.Position, meta paperMeta, exitReason string, closeTimeMs int64) error {
	avgExit := p.EntryPrice
	if meta.ExitQty > 0 {
		avgExit = meta.ExitNotional / meta.ExitQty
	}

	r := p.EntryPrice - p.PrimarySLPrice
	if r < 0 {
		r = -r
	}
	var pnlQuote, pnlR float64
	if r > 0 {
		if p.Bias == "LONG" {
			pnlQuote = (avgExit - p.EntryPrice) * p.QtyTotal
			pnlR = (avgExit - p.EntryPrice) / r
		} else {
			pnlQuote = (p.EntryPrice - avgExit) * p.QtyTotal
			pnlR = (p.EntryPrice - avgExit) / r
		}
	}

	now := closeTimeMs
	if now == 0 {
		now = nowMs()
	}
	reasonCopy := exitReason
	p.Status = "CLOSED"
	p.ClosedAtMs = &now
	p.ExitReason = &reasonCopy
	rawMeta, _ := json.Marshal(meta)
	p.Meta = rawMeta
	if err := s.store.UpsertPosition(ctx, p); err != nil {
		return fmt.Errorf("persist closed position: %w", err)
	}

	legs, _ := json.Marshal(meta)
	if err := s.store.InsertBacktestTrade(ctx, store.BacktestTrade{
		IdempotencyKey: p.IdempotencyKey, Symbol: p.Symbol, Timeframe: p.Timeframe, Side: p.Side,
		QtyTotal: p.QtyTotal, EntryPrice: p.EntryPrice, ExitPrice: avgExit, PrimarySLPrice: p.PrimarySLPrice,
		PnLQuote: pnlQuote, PnLR: pnlR, ExitReason: exitReason, OpenedAtMs: p.OpenedAtMs, ClosedAtMs: now, Legs: legs,
	}); err != nil {
		return fmt.Errorf("insert backtest trade: %w", err)
	}

	tradeDate := time.UnixMilli(now).UTC().Format("2006-01-02")
	isLoss := pnlQuote < 0
	if _, err := s.store.UpdateConsecutiveLossCount(ctx, tradeDate, meta.Mode, isLoss); err != nil {
		s.log.Warn().Err(err).Msg("execution: update consecutive loss count failed")
	}

	if isLoss && s.cfg.CooldownEnabled {
		bars := s.cfg.CooldownBars(p.Timeframe)
		if bars > 0 {
			if strideMs, err := timeframe.MS(p.Timeframe); err == nil {
				_ = s.store.UpsertCooldown(ctx, store.Cooldown{
					Symbol: p.Symbol, Side: p.Side, Timeframe: p.Timeframe, Reason: "PRIMARY_SL_HIT",
					UntilTsMs: now + int64(bars)*strideMs,
				})
			}
		}
	}

	s.publishExecutionReport(ctx, "", events.ExecutionReportPayload{
		PlanID: p.IdempotencyKey, Status: events.StatusPositionClosed, Symbol: p.Symbol, Timeframe: p.Timeframe,
		FilledQty: p.QtyTotal, AvgPrice: avgExit, Reason: exitReason,
	})
	return nil
}
