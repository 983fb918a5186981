package execution

import (
	"context"
	"encoding/json"

	"github.com/macd3/futures-engine/internal/events"
)

// publishExecutionReport validates, envelopes, and publishes an
// execution_report. Unlike signal/trade_plan these are not deduped
// against a DB row first — every status transition (ORDER_SUBMITTED, FILLED,
// TP_HIT, POSITION_CLOSED, ...) is its own fact and is always
// published.
func (s *Service) publishExecutionReport(ctx context.Context, traceID string, payload events.ExecutionReportPayload) {
	env, err := events.NewEnvelope("execution", traceID, payload)
	if err != nil {
		s.log.Error().Err(err).Str("plan_id", payload.PlanID).Msg("execution: build execution_report envelope failed")
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Msg("execution: marshal execution_report envelope failed")
		return
	}
	if _, err := s.broker.Publish(ctx, events.StreamExecutionReport, raw, events.StreamExecutionReport); err != nil {
		s.log.Error().Err(err).Str("plan_id", payload.PlanID).Msg("execution: publish execution_report failed")
	}
}

// emitRiskEvent validates, envelopes, and publishes a risk_event.
func (s *Service) emitRiskEvent(ctx context.Context, payload events.RiskEventPayload) {
	env, err := events.NewEnvelope("execution", "", payload)
	if err != nil {
		s.log.Error().Err(err).Str("type", payload.Type).Msg("execution: build risk_event envelope failed")
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Msg("execution: marshal risk_event envelope failed")
		return
	}
	if _, err := s.broker.Publish(ctx, events.StreamRiskEvent, raw, events.StreamRiskEvent); err != nil {
		s.log.Error().Err(err).Str("type", payload.Type).Msg("execution: publish risk_event failed")
	}
}
