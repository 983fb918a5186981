package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/broker"
)

func nowMs() int64 { return time.Now().UnixMilli() }

// barHistoryLimit is the bar history fetched per evaluation: enough for
// MACD/EMA warm-up plus a comfortable pivot lookback margin.
const barHistoryLimit = 500

// consumerGroup is the one shared consumer group every service reads
// its stream with — a single-tenant deployment, not a multi-tenant
// per-customer group namespace.
const consumerGroup = "macd3-workers"

// Config is the strategy service's tunable behavior, sourced from
// pkg/config.
type Config struct {
	MinConfirmations int
	AutoTimeframes   []string
	RunnerTrailMode  string // ATR or PIVOT, carried into tp3_trail.mode
	RiskPct          float64
	MaxOpenPositions int
	Consumer         string // unique consumer name within consumerGroup
}

// Service consumes bar_close and emits signal (and, for auto-trading
// timeframes, trade_plan) events.
type Service struct {
	store  *store.Store
	broker *broker.Client
	log    zerolog.Logger
	cfg    Config
}

// New builds a Service.
func New(st *store.Store, br *broker.Client, log zerolog.Logger, cfg Config) *Service {
	return &Service{store: st, broker: br, log: log, cfg: cfg}
}

// Run ensures the consumer group exists on every stream this service
// touches, then loops reading bar_close until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	for _, stream := range []string{events.StreamBarClose, events.StreamSignal, events.StreamTradePlan, events.StreamRiskEvent} {
		if err := s.broker.EnsureGroup(ctx, stream, consumerGroup); err != nil {
			return fmt.Errorf("strategy: ensure group %s: %w", stream, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := s.broker.ReadGroup(ctx, events.StreamBarClose, consumerGroup, s.cfg.Consumer, 20, 2000)
		if err != nil {
			return fmt.Errorf("strategy: read bar_close: %w", err)
		}
		for _, m := range msgs {
			s.handleMessage(ctx, m)
		}
	}
}

// handleMessage processes one bar_close delivery. An envelope that
// can't even be decoded goes to the dlq stream; a processing error past
// that point is reported as a risk event. Either way the message is
// still acked — this consumer never retries a poison message locally,
// so a single malformed or unexpectedly-shaped bar never wedges the
// consumer group.
func (s *Service) handleMessage(ctx context.Context, m broker.Message) {
	var env events.Envelope
	if err := json.Unmarshal(m.Raw, &env); err != nil {
		s.publishDLQ(ctx, m, "unmarshal envelope failed: "+err.Error())
		s.ack(ctx, m)
		return
	}

	var payload events.BarClosePayload
	if err := env.DecodePayload(&payload); err != nil {
		s.publishDLQ(ctx, m, "decode payload failed: "+err.Error())
		s.ack(ctx, m)
		return
	}

	if err := s.processBarClose(ctx, payload); err != nil {
		s.log.Warn().Err(err).Str("symbol", payload.Symbol).Str("timeframe", payload.Timeframe).
			Msg("strategy: bar_close processing failed")
		s.reportFailure(ctx, payload.Symbol, err)
	}
	s.ack(ctx, m)
}

func (s *Service) ack(ctx context.Context, m broker.Message) {
	if err := s.broker.Ack(ctx, events.StreamBarClose, consumerGroup, m.ID); err != nil {
		s.log.Error().Err(err).Str("id", m.ID).Msg("strategy: ack bar_close failed")
	}
}

// publishDLQ records a bar_close delivery that could not even be decoded
// onto the dlq stream for operator inspection. The original message is
// still acked by the caller — this consumer never retries a poison
// message locally.
func (s *Service) publishDLQ(ctx context.Context, m broker.Message, reason string) {
	if _, err := s.broker.PublishDLQ(ctx, nowMs(), events.StreamBarClose, m.ID, reason, nil); err != nil {
		s.log.Error().Err(err).Msg("strategy: publish dlq failed")
	}
}

// processBarClose loads history, runs Evaluate, and persists/publishes
// whatever it decides.
func (s *Service) processBarClose(ctx context.Context, payload events.BarClosePayload) error {
	bars, err := s.store.ListBars(ctx, payload.Symbol, payload.Timeframe, barHistoryLimit)
	if err != nil {
		return fmt.Errorf("list bars: %w", err)
	}

	decision, ok := Evaluate(payload.Symbol, payload.Timeframe, bars, s.cfg.MinConfirmations)
	if !ok {
		return nil
	}

	if err := s.emitSignal(ctx, decision); err != nil {
		return fmt.Errorf("emit signal: %w", err)
	}

	if isAutoTimeframe(payload.Timeframe, s.cfg.AutoTimeframes) {
		if err := s.emitTradePlan(ctx, decision); err != nil {
			return fmt.Errorf("emit trade plan: %w", err)
		}
	}
	return nil
}

func isAutoTimeframe(tf string, auto []string) bool {
	for _, a := range auto {
		if a == tf {
			return true
		}
	}
	return false
}

func (s *Service) reportFailure(ctx context.Context, symbol string, cause error) {
	payload := events.RiskEventPayload{
		Type: events.RiskDataGap, Severity: "IMPORTANT",
		Symbol: symbol, Detail: cause.Error(),
	}
	env, err := events.NewEnvelope("strategy", "", payload)
	if err != nil {
		s.log.Error().Err(err).Msg("strategy: build risk event envelope failed")
		return
	}
	raw, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Msg("strategy: marshal risk event failed")
		return
	}
	if _, err := s.broker.Publish(ctx, events.StreamRiskEvent, raw, events.StreamRiskEvent); err != nil {
		s.log.Error().Err(err).Msg("strategy: publish risk event failed")
	}
}
