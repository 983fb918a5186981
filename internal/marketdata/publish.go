package marketdata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/macd3/futures-engine/internal/events"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// emitRiskEvent publishes a single risk_event. Failures are logged, not
// returned — a risk_event is an observability signal, never a reason to
// fail bar ingestion.
func (s *Service) emitRiskEvent(ctx context.Context, payload events.RiskEventPayload) {
	env, err := events.NewEnvelope("marketdata", "", payload)
	if err != nil {
		s.log.Error().Err(err).Str("type", payload.Type).Msg("marketdata: build risk_event envelope failed")
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Msg("marketdata: marshal risk_event envelope failed")
		return
	}
	if _, err := s.broker.Publish(ctx, events.StreamRiskEvent, raw, events.StreamRiskEvent); err != nil {
		s.log.Error().Err(err).Str("type", payload.Type).Msg("marketdata: publish risk_event failed")
	}
}
