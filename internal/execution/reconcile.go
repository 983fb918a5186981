package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
)

const reconcileInterval = 5 * time.Second

// runReconcileLoop matches recent exchange order state against each
// OPEN position's local TP1/TP2 rows, moving the SL to break-even on
// TP1 and arming the runner stop on TP2. LIVE only.
func (s *Service) runReconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.reconcileOnce(ctx); err != nil {
				s.log.Warn().Err(err).Msg("execution: reconcile pass failed")
			}
		}
	}
}

func (s *Service) reconcileOnce(ctx context.Context) error {
	open, err := s.store.ListOpenPositions(ctx, "")
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	for _, p := range open {
		if err := s.reconcilePosition(ctx, p); err != nil {
			s.log.Warn().Err(err).Str("idempotency_key", p.IdempotencyKey).Msg("execution: reconcile position failed")
		}
	}
	return nil
}

func (s *Service) reconcilePosition(ctx context.Context, p store.Position) error {
	meta := decodePaperMeta(p.Meta)

	tp1, tp1Found, err := s.store.GetOrderByIdempotency(ctx, p.IdempotencyKey, "tp1")
	if err != nil {
		return err
	}
	tp2, tp2Found, err := s.store.GetOrderByIdempotency(ctx, p.IdempotencyKey, "tp2")
	if err != nil {
		return err
	}
	if !tp1Found && !tp2Found {
		return nil
	}

	orders, err := s.bybit.GetOpenOrders(ctx, p.Symbol, "")
	if err != nil {
		return fmt.Errorf("get open orders: %w", err)
	}
	byLinkID := make(map[string]struct {
		status string
		qty    float64
		avg    float64
	}, len(orders))
	for _, o := range orders {
		byLinkID[o.OrderLinkID] = struct {
			status string
			qty    float64
			avg    float64
		}{o.OrderStatus, o.CumExecQty, o.AvgPrice}
	}

	changed := false

	if tp1Found && !meta.TP1Filled {
		if link := tp1.ExchangeLinkID; link != nil {
			if state, ok := byLinkID[*link]; ok && state.status == "Filled" {
				meta.TP1Filled = true
				_ = s.store.UpdateOrderFill(ctx, tp1.OrderID, "FILLED", state.qty, state.avg, nowMs())
				breakEven := fmt.Sprintf("%g", p.EntryPrice)
				if err := s.bybit.SetTradingStop(ctx, p.Symbol, breakEven, "", s.cfg.BybitPositionIdx); err != nil {
					s.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("execution: break-even SL update failed")
				}
				s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskSLUpdate, Severity: "INFO", Symbol: p.Symbol})
				s.publishExecutionReport(ctx, "", events.ExecutionReportPayload{
					PlanID: p.IdempotencyKey, Status: events.StatusRunnerSLUpdated, Symbol: p.Symbol, Timeframe: p.Timeframe,
				})
				changed = true
			}
		}
	}

	if tp2Found && !meta.TP2Filled {
		if link := tp2.ExchangeLinkID; link != nil {
			if state, ok := byLinkID[*link]; ok && state.status == "Filled" {
				meta.TP2Filled = true
				_ = s.store.UpdateOrderFill(ctx, tp2.OrderID, "FILLED", state.qty, state.avg, nowMs())
				s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskTPFilled, Severity: "INFO", Symbol: p.Symbol})
				s.publishExecutionReport(ctx, "", events.ExecutionReportPayload{
					PlanID: p.IdempotencyKey, Status: events.StatusTPHit, Symbol: p.Symbol, Timeframe: p.Timeframe,
					FilledQty: state.qty, AvgPrice: state.avg, Reason: "tp2",
				})
				changed = true
			}
		}
	}

	if meta.TP2Filled && !meta.RunnerStopApplied && p.RunnerStopPrice != nil {
		slStr := fmt.Sprintf("%g", *p.RunnerStopPrice)
		if err := s.bybit.SetTradingStop(ctx, p.Symbol, slStr, "", s.cfg.BybitPositionIdx); err != nil {
			s.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("execution: runner stop exchange apply failed")
		} else {
			meta.RunnerStopApplied = true
			s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskSLUpdate, Severity: "INFO", Symbol: p.Symbol})
			changed = true
		}
	}

	if changed {
		raw, err := marshalMeta(meta)
		if err != nil {
			return err
		}
		p.Meta = raw
		return s.store.UpsertPosition(ctx, p)
	}
	return nil
}
