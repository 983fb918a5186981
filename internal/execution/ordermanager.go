package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/bybit"
)

const orderManagerInterval = 3 * time.Second

// runOrderManagerLoop periodically scans SUBMITTED limit-entry orders
// for timeout or partial-fill stalls and drives cancel/reprice/retry or
// fallback-to-market. LIVE limit-entry mode only.
func (s *Service) runOrderManagerLoop(ctx context.Context) error {
	if s.cfg.EntryOrderType != "Limit" {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(orderManagerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.scanAbnormalOrders(ctx)
		}
	}
}

func (s *Service) scanAbnormalOrders(ctx context.Context) {
	orders, err := s.store.ListOpenOrders(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("execution: list open orders failed")
		return
	}
	now := nowMs()
	for _, o := range orders {
		if o.Purpose != "entry" || o.SubmittedAtMs == nil {
			continue
		}
		age := now - *o.SubmittedAtMs
		switch {
		case o.FilledQty <= 0 && age >= int64(s.cfg.EntryTimeoutMs):
			s.handleAbnormalEntry(ctx, o, "timeout")
		case o.FilledQty > 0 && o.FilledQty < o.Qty && age >= int64(s.cfg.EntryPartialFillTimeoutMs):
			s.handleAbnormalEntry(ctx, o, "partial_fill_stalled")
		}
	}
}

// handleAbnormalEntry cancels a stalled limit entry and either reprices
// and resubmits (if retries remain) or falls back to a market order.
func (s *Service) handleAbnormalEntry(ctx context.Context, o store.Order, cause string) {
	riskType := events.RiskOrderTimeout
	if cause == "partial_fill_stalled" {
		riskType = events.RiskOrderPartialFill
	}
	s.emitRiskEvent(ctx, events.RiskEventPayload{Type: riskType, Severity: "IMPORTANT", Symbol: "", Detail: o.OrderID})

	exchangeOrderID := ""
	if o.ExchangeOrderID != nil {
		exchangeOrderID = *o.ExchangeOrderID
	}
	symbol := s.orderSymbol(ctx, o)
	if err := s.bybit.CancelOrder(ctx, symbol, exchangeOrderID, ""); err != nil {
		s.log.Warn().Err(err).Str("order_id", o.OrderID).Msg("execution: cancel stalled entry failed")
	}
	s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskOrderCancelled, Severity: "INFO", Detail: o.OrderID})
	_ = s.store.UpdateOrderFill(ctx, o.OrderID, "CANCELLED", o.FilledQty, 0, nowMs())

	if o.RetryCount >= s.cfg.EntryMaxRetries {
		if s.cfg.EntryFallbackMarket {
			s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskOrderFallbackMarket, Severity: "IMPORTANT", Detail: o.OrderID})
			s.resubmitAsMarket(ctx, o)
		}
		return
	}

	_ = s.store.IncrementRetryCount(ctx, o.OrderID)
	s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskOrderRetry, Severity: "INFO", Detail: o.OrderID})
	s.repriceAndResubmit(ctx, o)
}

// repriceAndResubmit moves the limit price toward the market by
// reprice_bps per attempt and resubmits the remaining quantity: buys
// walk up, sells walk down.
func (s *Service) repriceAndResubmit(ctx context.Context, o store.Order) {
	if o.Price == nil {
		return
	}
	attempt := float64(o.RetryCount + 1)
	bps := s.cfg.EntryRepriceBps * attempt / 10_000
	newPrice := *o.Price
	if o.Side == "BUY" {
		newPrice = *o.Price * (1 + bps)
	} else {
		newPrice = *o.Price * (1 - bps)
	}
	remaining := o.Qty - o.FilledQty
	linkID := fmt.Sprintf("%s:retry%d", o.OrderID, o.RetryCount+1)
	result, err := s.bybit.CreateOrder(ctx, bybit.OrderRequest{
		Symbol: s.orderSymbol(ctx, o), Side: o.Side, OrderType: "Limit",
		Qty: fmt.Sprintf("%g", remaining), Price: fmt.Sprintf("%g", newPrice), OrderLinkID: linkID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("order_id", o.OrderID).Msg("execution: reprice resubmit failed")
		return
	}
	now := nowMs()
	_ = s.store.InsertOrder(ctx, store.Order{
		OrderID: result.OrderID, IdempotencyKey: o.IdempotencyKey, Purpose: o.Purpose, Side: o.Side,
		OrderType: "Limit", Qty: remaining, Price: &newPrice, Status: "SUBMITTED",
		ExchangeOrderID: &result.OrderID, ExchangeLinkID: &result.OrderLinkID, SubmittedAtMs: &now, RetryCount: o.RetryCount + 1,
	})
}

func (s *Service) resubmitAsMarket(ctx context.Context, o store.Order) {
	remaining := o.Qty - o.FilledQty
	linkID := fmt.Sprintf("%s:fallback", o.OrderID)
	result, err := s.bybit.CreateOrder(ctx, bybit.OrderRequest{
		Symbol: s.orderSymbol(ctx, o), Side: o.Side, OrderType: "Market",
		Qty: fmt.Sprintf("%g", remaining), OrderLinkID: linkID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("order_id", o.OrderID).Msg("execution: fallback market order failed")
		return
	}
	now := nowMs()
	_ = s.store.InsertOrder(ctx, store.Order{
		OrderID: result.OrderID, IdempotencyKey: o.IdempotencyKey, Purpose: o.Purpose, Side: o.Side,
		OrderType: "Market", Qty: remaining, Status: "SUBMITTED",
		ExchangeOrderID: &result.OrderID, ExchangeLinkID: &result.OrderLinkID, SubmittedAtMs: &now,
	})
}

// orderSymbol recovers the symbol a stored order row belongs to. Orders
// don't carry symbol directly (it's implied by the plan), so the
// idempotency_key's position row is the source of truth.
func (s *Service) orderSymbol(ctx context.Context, o store.Order) string {
	p, found, err := s.store.GetPosition(ctx, o.IdempotencyKey)
	if err != nil || !found {
		return ""
	}
	return p.Symbol
}
