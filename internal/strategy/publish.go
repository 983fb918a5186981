package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

// planValidityWindow bounds a trade_plan's admissible entry window to
// the bar that just closed through the next bar of the same timeframe.
// Execution's admission pipeline rejects any plan found expired by this
// window, so a plan becomes stale the moment a newer bar would have
// superseded it.
func planValidityWindow(closeTimeMs int64, tf string) (validFrom, expiresAt int64) {
	stride := timeframe.MustMS(tf)
	return closeTimeMs, closeTimeMs + stride
}

func (s *Service) emitSignal(ctx context.Context, d Decision) error {
	payload := events.SignalPayload{
		Symbol: d.Symbol, Timeframe: d.Timeframe, CloseTimeMs: d.CloseTimeMs,
		SetupID: d.SetupID, TriggerID: d.TriggerID,
		Bias: string(d.Bias), VegasState: d.VegasState,
		Confirmations: events.Confirmations{
			MinRequired: s.cfg.MinConfirmations, HitCount: len(d.Hits), Hits: d.Hits,
		},
		IdempotencyKey: d.IdempotencyKey,
	}
	validFrom, expiresAt := planValidityWindow(d.CloseTimeMs, d.Timeframe)
	payload.Lifecycle = events.Lifecycle{Status: "ACTIVE", ValidFromMs: validFrom, ExpiresAtMs: expiresAt}

	env, err := events.NewEnvelope("strategy", "", payload)
	if err != nil {
		return fmt.Errorf("build signal envelope: %w", err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal signal payload: %w", err)
	}
	inserted, err := s.store.InsertSignal(ctx, store.Signal{
		IdempotencyKey: d.IdempotencyKey, Symbol: d.Symbol, Timeframe: d.Timeframe,
		CloseTimeMs: d.CloseTimeMs, Bias: string(d.Bias), VegasState: d.VegasState,
		Payload: payloadJSON, CreatedAtMs: env.TsMs,
	})
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	if !inserted {
		return nil // already emitted for this idempotency_key
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal signal envelope: %w", err)
	}
	if _, err := s.broker.Publish(ctx, events.StreamSignal, raw, events.StreamSignal); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}
	return nil
}

func (s *Service) emitTradePlan(ctx context.Context, d Decision) error {
	validFrom, expiresAt := planValidityWindow(d.CloseTimeMs, d.Timeframe)
	plan := events.TradePlanPayload{
		PlanID: planID(d.Symbol, d.Timeframe, d.CloseTimeMs, string(d.Bias)),
		IdempotencyKey: d.IdempotencyKey,
		Symbol: d.Symbol, Timeframe: d.Timeframe, Status: "PENDING",
		ValidFromMs: validFrom, ExpiresAtMs: expiresAt,
		Side: side(string(d.Bias)), EntryPrice: d.EntryPrice, PrimarySLPrice: d.PrimarySLPrice,
		TPRules:         fixedTPRules(s.cfg.RunnerTrailMode),
		SecondarySLRule: secondarySLRule(),
		RiskParams:      events.RiskParams{RiskPct: s.cfg.RiskPct, MaxOpenPositionsDefault: s.cfg.MaxOpenPositions},
		Traceability:    events.Traceability{SetupID: d.SetupID, TriggerID: d.TriggerID},
	}

	env, err := events.NewEnvelope("strategy", "", plan)
	if err != nil {
		return fmt.Errorf("build trade_plan envelope: %w", err)
	}

	tpRulesJSON, err := json.Marshal(plan.TPRules)
	if err != nil {
		return fmt.Errorf("marshal tp_rules: %w", err)
	}
	secondarySLJSON, err := json.Marshal(plan.SecondarySLRule)
	if err != nil {
		return fmt.Errorf("marshal secondary_sl_rule: %w", err)
	}

	inserted, err := s.store.InsertTradePlan(ctx, store.TradePlan{
		IdempotencyKey: d.IdempotencyKey, PlanID: plan.PlanID, Symbol: d.Symbol, Timeframe: d.Timeframe,
		Side: plan.Side, EntryPrice: plan.EntryPrice, PrimarySLPrice: plan.PrimarySLPrice,
		TPRules: tpRulesJSON, SecondarySLRule: secondarySLJSON, RiskPct: s.cfg.RiskPct,
		Status: plan.Status, ValidFromMs: validFrom, ExpiresAtMs: expiresAt, CreatedAtMs: env.TsMs,
	})
	if err != nil {
		return fmt.Errorf("insert trade_plan: %w", err)
	}
	if !inserted {
		return nil
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal trade_plan envelope: %w", err)
	}
	if _, err := s.broker.Publish(ctx, events.StreamTradePlan, raw, events.StreamTradePlan); err != nil {
		return fmt.Errorf("publish trade_plan: %w", err)
	}
	return nil
}
