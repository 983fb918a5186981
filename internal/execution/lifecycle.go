package execution

import (
	"context"
	"fmt"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/indicators"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/bybit"
)

// onBarCloseLifecycle runs the two bar-close-driven position checks for
// every OPEN position matching the bar's (symbol, timeframe): the
// once-only secondary exit rule, then the runner trailing-stop update.
func (s *Service) onBarCloseLifecycle(ctx context.Context, bar events.BarClosePayload) error {
	open, err := s.store.ListOpenPositions(ctx, bar.Symbol)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	for _, p := range open {
		if p.Timeframe != bar.Timeframe {
			continue
		}
		if err := s.applySecondaryExitRule(ctx, p, bar); err != nil {
			return err
		}
		// applySecondaryExitRule may have closed the position; re-fetch
		// before touching the trailing stop so a closed position isn't
		// re-opened by a stale write.
		fresh, found, err := s.store.GetPosition(ctx, p.IdempotencyKey)
		if err != nil {
			return fmt.Errorf("reload position: %w", err)
		}
		if !found || fresh.Status != "OPEN" {
			continue
		}
		if err := s.updateRunnerTrailingStop(ctx, fresh, bar); err != nil {
			return err
		}
	}
	return nil
}

// applySecondaryExitRule checks "next bar not shortening" exactly once,
// on the first bar-close strictly after entry_close_time_ms.
func (s *Service) applySecondaryExitRule(ctx context.Context, p store.Position, bar events.BarClosePayload) error {
	if p.SecondaryRuleChecked {
		return nil
	}
	if bar.CloseTimeMs <= p.EntryCloseTimeMs {
		return nil
	}

	bars, err := s.store.ListBars(ctx, p.Symbol, p.Timeframe, barHistoryLimit)
	if err != nil {
		return fmt.Errorf("list bars: %w", err)
	}
	if len(bars) < 120 {
		p.SecondaryRuleChecked = true
		return s.markSecondaryRuleChecked(ctx, p)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	_, _, hist := indicators.DefaultMACD(closes)
	if len(hist) == 0 {
		p.SecondaryRuleChecked = true
		return s.markSecondaryRuleChecked(ctx, p)
	}
	histNow := hist[len(hist)-1]

	histEntry := histNow
	if p.HistEntry != nil {
		histEntry = *p.HistEntry
	}

	ok := (p.Bias == "LONG" && histNow > histEntry) || (p.Bias == "SHORT" && histNow < histEntry)
	if !ok {
		s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskExitRuleTriggered, Severity: "INFO", Symbol: p.Symbol})
		if err := s.closePositionMarket(ctx, p, "secondary_rule"); err != nil {
			return fmt.Errorf("secondary rule force close: %w", err)
		}
		return nil
	}

	p.SecondaryRuleChecked = true
	return s.markSecondaryRuleChecked(ctx, p)
}

func (s *Service) markSecondaryRuleChecked(ctx context.Context, p store.Position) error {
	p.SecondaryRuleChecked = true
	return s.store.UpsertPosition(ctx, p)
}

// updateRunnerTrailingStop advances the runner's stop-loss, never
// loosening it. ATR mode uses ATR(14); PIVOT mode uses the most recent
// opposing pivot.
func (s *Service) updateRunnerTrailingStop(ctx context.Context, p store.Position, bar events.BarClosePayload) error {
	if p.QtyRunner <= 0 {
		return nil
	}

	bars, err := s.store.ListBars(ctx, p.Symbol, p.Timeframe, barHistoryLimit)
	if err != nil {
		return fmt.Errorf("list bars: %w", err)
	}
	if len(bars) < 20 {
		return nil
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	var newStop float64
	switch s.cfg.RunnerTrailMode {
	case "PIVOT":
		if p.Bias == "LONG" {
			pivots := indicators.PivotLows(lows, indicators.DefaultPivotLeft, indicators.DefaultPivotRight)
			if len(pivots) == 0 {
				return nil
			}
			newStop = pivots[len(pivots)-1].Price
		} else {
			pivots := indicators.PivotHighs(highs, indicators.DefaultPivotLeft, indicators.DefaultPivotRight)
			if len(pivots) == 0 {
				return nil
			}
			newStop = pivots[len(pivots)-1].Price
		}
	default: // ATR
		period := s.cfg.RunnerATRPeriod
		if period <= 0 {
			period = 14
		}
		atr := indicators.ATR(highs, lows, closes, period)
		if len(atr) == 0 {
			return nil
		}
		last := atr[len(atr)-1]
		if p.Bias == "LONG" {
			newStop = bar.OHLCV.Close - last*s.cfg.RunnerATRMult
		} else {
			newStop = bar.OHLCV.Close + last*s.cfg.RunnerATRMult
		}
	}

	old := p.PrimarySLPrice
	if p.RunnerStopPrice != nil {
		old = *p.RunnerStopPrice
	}
	var clamped float64
	if p.Bias == "LONG" {
		clamped = maxF(old, newStop)
	} else {
		clamped = minF(old, newStop)
	}
	if clamped == old {
		return nil
	}

	p.RunnerStopPrice = &clamped
	if err := s.store.UpsertPosition(ctx, p); err != nil {
		return fmt.Errorf("persist trailing stop: %w", err)
	}

	if s.cfg.ExecutionMode == "LIVE" {
		slStr := fmt.Sprintf("%g", clamped)
		if err := s.bybit.SetTradingStop(ctx, p.Symbol, slStr, "", s.cfg.BybitPositionIdx); err != nil {
			s.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("execution: runner trailing-stop exchange update failed")
		}
	}

	s.publishExecutionReport(ctx, "", events.ExecutionReportPayload{
		PlanID: p.IdempotencyKey, Status: events.StatusRunnerSLUpdated, Symbol: p.Symbol, Timeframe: p.Timeframe,
	})
	s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskSLUpdate, Severity: "INFO", Symbol: p.Symbol})
	return nil
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// closePositionMarket force-closes a position at market — used by both
// the admission pipeline's mutex-upgrade gate and the secondary exit
// rule. In PAPER/BACKTEST this finalizes the position with the last
// known close price; in LIVE it submits a reduce-only market order.
func (s *Service) closePositionMarket(ctx context.Context, p store.Position, reason string) error {
	exitPrice := p.EntryPrice
	if bars, err := s.store.ListBars(ctx, p.Symbol, p.Timeframe, 1); err == nil && len(bars) > 0 {
		exitPrice = bars[0].Close
	}

	if s.cfg.ExecutionMode == "LIVE" {
		closeSide := opposite(p.Side)
		_, err := s.bybit.CreateOrder(ctx, bybit.OrderRequest{
			Symbol: p.Symbol, Side: closeSide, OrderType: "Market",
			Qty: fmt.Sprintf("%g", p.QtyTotal), ReduceOnly: true,
			OrderLinkID: orderLinkID(p.IdempotencyKey, "close_"+reason),
		})
		if err != nil {
			return fmt.Errorf("submit close-market order: %w", err)
		}
	}

	now := nowMs()
	reasonCopy := reason
	p.Status = "CLOSED"
	p.ClosedAtMs = &now
	p.ExitReason = &reasonCopy
	if err := s.store.UpsertPosition(ctx, p); err != nil {
		return fmt.Errorf("persist closed position: %w", err)
	}

	status := events.StatusSecondarySLExit
	if reason == "mutex_upgrade" {
		status = events.StatusPositionClosed
	}
	s.publishExecutionReport(ctx, "", events.ExecutionReportPayload{
		PlanID: p.IdempotencyKey, Status: status, Symbol: p.Symbol, Timeframe: p.Timeframe,
		FilledQty: p.QtyTotal, AvgPrice: exitPrice, Reason: reason,
	})
	return nil
}
