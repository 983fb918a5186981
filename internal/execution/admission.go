package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/indicators"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/bybit"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

// admitTradePlan runs the full entry admission pipeline: idempotency/
// lock acquisition, a sequence of risk gates (kill switch, risk-state
// circuit, max open positions, position mutex, cooldown, plan expiry),
// sizing, order placement, and the resulting execution_report. Each
// gate is its own helper, checked in the order below.
func (s *Service) admitTradePlan(ctx context.Context, env events.Envelope, plan events.TradePlanPayload) {
	idem := plan.IdempotencyKey
	if idem == "" {
		s.log.Warn().Str("plan_id", plan.PlanID).Msg("execution: trade_plan missing idempotency_key, dropping")
		return
	}

	lock, ok, err := s.broker.AcquirePlanLock(ctx, idem, s.lockTTL())
	if err != nil {
		s.log.Error().Err(err).Str("idempotency_key", idem).Msg("execution: acquire plan lock failed")
		return
	}
	if !ok {
		return // another worker already owns this plan
	}
	defer s.broker.Release(ctx, lock)

	if existing, found, _ := s.store.GetPosition(ctx, idem); found {
		_ = existing
		return // already admitted — duplicate trade_plan delivery
	}

	if on, err := s.isKillSwitchOn(ctx); err != nil {
		s.log.Error().Err(err).Msg("execution: kill switch check failed")
		return
	} else if on {
		if s.shouldEmitKillSwitchAlert() {
			s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskKillSwitchOn, Severity: "CRITICAL", Symbol: plan.Symbol})
		}
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: events.RiskKillSwitchOn})
		return
	}

	tradeDate := time.UnixMilli(nowMs()).UTC().Format("2006-01-02")
	equity, err := s.resolveEquity(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("execution: resolve equity failed")
		return
	}
	riskState, err := s.store.GetOrCreateRiskState(ctx, tradeDate, equity)
	if err != nil {
		s.log.Error().Err(err).Msg("execution: get risk state failed")
		return
	}
	if riskState.HardHalt || riskState.KillSwitch {
		s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskCircuitBlock, Severity: "IMPORTANT", Symbol: plan.Symbol, Detail: "hard_halt"})
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: "HARD_HALT"})
		return
	}
	if riskState.SoftHalt {
		s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskCircuitBlock, Severity: "INFO", Symbol: plan.Symbol, Detail: "soft_halt"})
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: "SOFT_HALT"})
		return
	}

	open, err := s.store.ListOpenPositions(ctx, "")
	if err != nil {
		s.log.Error().Err(err).Msg("execution: list open positions failed")
		return
	}
	maxOpen := s.cfg.MaxOpenPositionsDefault
	if len(open) >= maxOpen {
		s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskMaxPositionsBlocked, Severity: "INFO", Symbol: plan.Symbol})
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: events.RiskMaxPositionsBlocked})
		return
	}

	blocked, err := s.enforcePositionMutex(ctx, env, plan, open)
	if err != nil {
		s.log.Error().Err(err).Msg("execution: position mutex gate failed")
		return
	}
	if blocked {
		return
	}

	if s.cfg.CooldownEnabled {
		if cd, found, err := s.store.ActiveCooldown(ctx, plan.Symbol, plan.Side, plan.Timeframe, "PRIMARY_SL_HIT", nowMs()); err != nil {
			s.log.Error().Err(err).Msg("execution: cooldown check failed")
			return
		} else if found {
			s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskCooldownBlocked, Severity: "INFO", Symbol: plan.Symbol, RetryAfterMs: cd.UntilTsMs - nowMs()})
			s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: events.RiskCooldownBlocked})
			return
		}
	}

	if nowMs() > plan.ExpiresAtMs {
		s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskSignalExpired, Severity: "INFO", Symbol: plan.Symbol})
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: events.RiskSignalExpired})
		return
	}

	filters := s.instrumentFilters(ctx, plan.Symbol)

	qtyTotal := calcQty(equity, plan.RiskParams.RiskPct, plan.EntryPrice, plan.PrimarySLPrice, filters)
	if qtyTotal <= 0 {
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: "QTY_BELOW_MIN"})
		return
	}
	tp1Qty, tp2Qty, runnerQty := splitTPQty(qtyTotal)
	tp1Price, tp2Price := tpPrices(plan.Side, plan.EntryPrice, plan.PrimarySLPrice, filters.TickSize)

	meta, _ := json.Marshal(paperMeta{
		QtyOpen: qtyTotal, Mode: s.cfg.ExecutionMode, RunID: runIDFromMeta(env.Meta),
		TP1Qty: tp1Qty, TP2Qty: tp2Qty, TP1Price: tp1Price, TP2Price: tp2Price,
	})

	histEntry := s.histogramAt(ctx, plan.Symbol, plan.Timeframe)

	pos := store.Position{
		IdempotencyKey: idem, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Side: plan.Side,
		Bias: bias(plan.Side), QtyTotal: qtyTotal, QtyRunner: runnerQty, EntryPrice: plan.EntryPrice,
		PrimarySLPrice: plan.PrimarySLPrice, RunnerStopPrice: &plan.PrimarySLPrice, Status: "OPEN",
		EntryCloseTimeMs: plan.ValidFromMs, OpenedAtMs: nowMs(), Meta: meta, HistEntry: histEntry,
	}
	if err := s.store.UpsertPosition(ctx, pos); err != nil {
		s.log.Error().Err(err).Str("idempotency_key", idem).Msg("execution: upsert position failed")
		return
	}

	s.placeEntryAndTPs(ctx, env, plan, filters, qtyTotal, tp1Qty, tp2Qty, tp1Price, tp2Price)
}

// histogramAt computes the current MACD histogram value for (symbol,
// timeframe), seeding a position's hist_entry baseline so the bar-close
// secondary exit rule has a reference point to compare against.
func (s *Service) histogramAt(ctx context.Context, symbol, tf string) *float64 {
	bars, err := s.store.ListBars(ctx, symbol, tf, barHistoryLimit)
	if err != nil || len(bars) < 120 {
		return nil
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	_, _, hist := indicators.DefaultMACD(closes)
	if len(hist) == 0 {
		return nil
	}
	v := hist[len(hist)-1]
	return &v
}

func runIDFromMeta(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta["run_id"].(string); ok {
		return v
	}
	return ""
}

func bias(side string) string {
	if side == "BUY" {
		return "LONG"
	}
	return "SHORT"
}

func (s *Service) lockTTL() time.Duration {
	if s.cfg.LockTTL > 0 {
		return s.cfg.LockTTL
	}
	return 10 * time.Second
}

// resolveEquity returns account equity: PAPER/BACKTEST use the
// configured paper balance, LIVE queries the wallet balance endpoint
// (degrading to the last cached value on failure).
func (s *Service) resolveEquity(ctx context.Context) (float64, error) {
	if s.cfg.ExecutionMode != "LIVE" {
		return s.cfg.PaperEquity, nil
	}
	if v, fresh := s.walletCache.Get("equity"); fresh {
		return v, nil
	}
	balances, err := s.bybit.GetWalletBalance(ctx, "UNIFIED")
	if err != nil {
		if cached, ok := s.walletCache.GetOrStale("equity"); ok {
			return cached.Value, nil
		}
		return 0, err
	}
	var total float64
	for _, b := range balances {
		total += b.WalletBalance
	}
	s.walletCache.Set("equity", total)
	return total, nil
}

// instrumentFilters fetches exchange quantization rules, falling back to
// conservative defaults on failure.
func (s *Service) instrumentFilters(ctx context.Context, symbol string) InstrumentFilters {
	inst, err := s.bybit.GetInstrumentsInfo(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("execution: instruments-info failed, using defaults")
		return defaultInstrumentFilters
	}
	return InstrumentFilters{QtyStep: inst.QtyStep, MinQty: inst.MinOrderQty, TickSize: inst.TickSize}
}

// enforcePositionMutex implements the same-symbol-same-side mutex: a
// lower-priority timeframe position on the same (symbol, side)
// is force-closed to make room for a higher-priority one; an equal-or-
// higher-priority existing position blocks the new plan outright.
func (s *Service) enforcePositionMutex(ctx context.Context, env events.Envelope, plan events.TradePlanPayload, open []store.Position) (bool, error) {
	for _, p := range open {
		if p.Symbol != plan.Symbol || p.Side != plan.Side {
			continue
		}
		if timeframe.Higher(plan.Timeframe, p.Timeframe) {
			if err := s.closePositionMarket(ctx, p, "mutex_upgrade"); err != nil {
				return false, fmt.Errorf("mutex upgrade close: %w", err)
			}
			continue
		}
		s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskPositionMutexBlocked, Severity: "INFO", Symbol: plan.Symbol})
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: events.RiskPositionMutexBlocked})
		return true, nil
	}
	return false, nil
}

// placeEntryAndTPs submits the ENTRY order (immediate fill in
// PAPER/BACKTEST, Market+trading-stop in LIVE) plus the TP1/TP2
// reduce-only limit legs, and emits the resulting execution_report.
func (s *Service) placeEntryAndTPs(ctx context.Context, env events.Envelope, plan events.TradePlanPayload, filters InstrumentFilters, qtyTotal, tp1Qty, tp2Qty, tp1Price, tp2Price float64) {
	idem := plan.IdempotencyKey

	if s.cfg.ExecutionMode != "LIVE" {
		entryID := paperID("entry", idem)
		now := nowMs()
		_ = s.store.InsertOrder(ctx, store.Order{
			OrderID: entryID, IdempotencyKey: idem, Purpose: "entry", Side: plan.Side, OrderType: "Market",
			Qty: qtyTotal, Status: "FILLED", FilledQty: qtyTotal, AvgPrice: &plan.EntryPrice, SubmittedAtMs: &now, LastFillAtMs: &now,
		})
		s.upsertTPOrder(ctx, idem, "tp1", opposite(plan.Side), tp1Qty, tp1Price)
		s.upsertTPOrder(ctx, idem, "tp2", opposite(plan.Side), tp2Qty, tp2Price)
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{
			PlanID: plan.PlanID, Status: events.StatusFilled, Symbol: plan.Symbol, Timeframe: plan.Timeframe,
			FilledQty: qtyTotal, AvgPrice: plan.EntryPrice, OrderID: entryID,
		})
		return
	}

	linkID := orderLinkID(idem, "entry")
	result, err := s.bybit.CreateOrder(ctx, bybit.OrderRequest{
		Symbol: plan.Symbol, Side: plan.Side, OrderType: "Market",
		Qty: fmt.Sprintf("%g", qtyTotal), OrderLinkID: linkID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("idempotency_key", idem).Msg("execution: entry market order failed")
		s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{PlanID: plan.PlanID, Status: events.StatusOrderRejected, Symbol: plan.Symbol, Timeframe: plan.Timeframe, Reason: "ENTRY_ORDER_FAILED"})
		return
	}
	now := nowMs()
	_ = s.store.InsertOrder(ctx, store.Order{
		OrderID: result.OrderID, IdempotencyKey: idem, Purpose: "entry", Side: plan.Side, OrderType: "Market",
		Qty: qtyTotal, Status: "SUBMITTED", ExchangeOrderID: &result.OrderID, ExchangeLinkID: &result.OrderLinkID, SubmittedAtMs: &now,
	})

	slStr := fmt.Sprintf("%g", plan.PrimarySLPrice)
	if err := s.bybit.SetTradingStop(ctx, plan.Symbol, slStr, "", s.cfg.BybitPositionIdx); err != nil {
		s.log.Error().Err(err).Str("idempotency_key", idem).Msg("execution: set primary SL failed")
		s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskSetSLFailed, Severity: "CRITICAL", Symbol: plan.Symbol})
	}

	s.submitLiveTP(ctx, plan.Symbol, idem, "tp1", opposite(plan.Side), tp1Qty, tp1Price)
	s.submitLiveTP(ctx, plan.Symbol, idem, "tp2", opposite(plan.Side), tp2Qty, tp2Price)

	s.publishExecutionReport(ctx, env.TraceID, events.ExecutionReportPayload{
		PlanID: plan.PlanID, Status: events.StatusOrderSubmitted, Symbol: plan.Symbol, Timeframe: plan.Timeframe,
		OrderID: result.OrderID,
	})
}

func (s *Service) upsertTPOrder(ctx context.Context, idem, purpose, side string, qty, price float64) {
	now := nowMs()
	p := price
	_ = s.store.InsertOrder(ctx, store.Order{
		OrderID: paperID(purpose, idem), IdempotencyKey: idem, Purpose: purpose, Side: side, OrderType: "Limit",
		Qty: qty, Price: &p, ReduceOnly: true, Status: "SUBMITTED", SubmittedAtMs: &now,
	})
}

func (s *Service) submitLiveTP(ctx context.Context, symbol, idem, purpose, side string, qty, price float64) {
	linkID := orderLinkID(idem, purpose)
	result, err := s.bybit.CreateOrder(ctx, bybit.OrderRequest{
		Symbol: symbol, Side: side, OrderType: "Limit",
		Qty: fmt.Sprintf("%g", qty), Price: fmt.Sprintf("%g", price),
		ReduceOnly: true, OrderLinkID: linkID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("idempotency_key", idem).Str("purpose", purpose).Msg("execution: TP order submission failed")
		return
	}
	now := nowMs()
	p := price
	_ = s.store.InsertOrder(ctx, store.Order{
		OrderID: result.OrderID, IdempotencyKey: idem, Purpose: purpose, Side: side, OrderType: "Limit",
		Qty: qty, Price: &p, ReduceOnly: true, Status: "SUBMITTED",
		ExchangeOrderID: &result.OrderID, ExchangeLinkID: &result.OrderLinkID, SubmittedAtMs: &now,
	})
}

func opposite(side string) string {
	if side == "BUY" {
		return "SELL"
	}
	return "BUY"
}
