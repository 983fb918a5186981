// Package execution turns admitted trade plans into orders, manages each
// position through its full lifecycle (entry fill, SL/TP, runner
// trailing, exit), reconciles exchange truth against local state, and
// maintains a full audit trail of every decision.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/broker"
	"github.com/macd3/futures-engine/pkg/bybit"
	"github.com/macd3/futures-engine/pkg/cache"
)

// consumerGroup matches strategy's shared group name — single-tenant
// assumption. It is the same literal as REDIS_STREAM_GROUP's default in
// pkg/config; that setting is not read here, so changing it does not
// change the group.
const consumerGroup = "macd3-workers"

const barHistoryLimit = 500

// Config is the execution service's tunable behavior, sourced from
// pkg/config.
type Config struct {
	Consumer string

	ExecutionMode   string // LIVE, PAPER, BACKTEST
	RunnerTrailMode string // ATR, PIVOT
	RunnerATRPeriod int
	RunnerATRMult   float64
	PaperEquity     float64

	MaxOpenPositionsDefault int
	DailyDrawdownSoftPct    float64
	DailyDrawdownHardPct    float64
	KillSwitchForceOn       bool

	CooldownEnabled bool
	CooldownBars    func(timeframe string) int

	EntryOrderType            string
	EntryTimeoutMs            int
	EntryPartialFillTimeoutMs int
	EntryMaxRetries           int
	EntryRepriceBps           float64
	EntryFallbackMarket       bool

	BybitPositionIdx int
	LockTTL          time.Duration
	KillSwitchWindow time.Duration

	PrivateWSURL   string
	BybitAPIKey    string
	BybitAPISecret string
}

// Service consumes trade_plan and bar_close and drives every execution
// loop: admission, lifecycle, paper-sim, snapshotter, reconcile,
// risk-monitor, position-sync, order abnormal-handling, and private-WS
// ingest.
type Service struct {
	store  *store.Store
	broker *broker.Client
	bybit  *bybit.Client
	log    zerolog.Logger
	cfg    Config

	walletCache    *cache.TTLCache[float64]
	positionsCache *cache.TTLCache[[]bybit.Position]
	openOrderCache *cache.TTLCache[[]bybit.RealtimeOrder]

	lastKillSwitchAlertMs int64
}

// New builds a Service.
func New(st *store.Store, br *broker.Client, bc *bybit.Client, log zerolog.Logger, cfg Config) *Service {
	return &Service{
		store:  st,
		broker: br,
		bybit:  bc,
		log:    log,
		cfg:    cfg,

		walletCache:    cache.New[float64](5 * time.Second),
		positionsCache: cache.New[[]bybit.Position](3 * time.Second),
		openOrderCache: cache.New[[]bybit.RealtimeOrder](3 * time.Second),
	}
}

// Run starts every cooperative loop (trade_plan consumer, bar_close
// consumer, snapshotter, risk-monitor, and in LIVE mode also reconcile,
// position-sync, order abnormal-handling, private-WS ingest) and blocks
// until ctx is cancelled or any loop returns a fatal error.
func (s *Service) Run(ctx context.Context) error {
	for _, stream := range []string{events.StreamTradePlan, events.StreamBarClose, events.StreamExecutionReport, events.StreamRiskEvent} {
		if err := s.broker.EnsureGroup(ctx, stream, consumerGroup); err != nil {
			return fmt.Errorf("execution: ensure group %s: %w", stream, err)
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 8)

	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("execution: %s: %w", name, err)
			}
		}()
	}

	run("trade_plan_consumer", s.runTradePlanConsumer)
	run("bar_close_consumer", s.runBarCloseConsumer)
	run("snapshotter_loop", s.runSnapshotterLoop)
	run("risk_monitor_loop", s.runRiskMonitorLoop)

	if s.cfg.ExecutionMode == "LIVE" {
		run("reconcile_loop", s.runReconcileLoop)
		run("position_sync_loop", s.runPositionSyncLoop)
		run("order_manager_loop", s.runOrderManagerLoop)
		run("private_ws_ingest", s.runPrivateWSIngest)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-ctx.Done():
		<-done
		return ctx.Err()
	case err := <-errCh:
		return err
	case <-done:
		return nil
	}
}

func (s *Service) runTradePlanConsumer(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msgs, err := s.broker.ReadGroup(ctx, events.StreamTradePlan, consumerGroup, s.cfg.Consumer, 20, 2000)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			s.handleTradePlan(ctx, m)
		}
	}
}

func (s *Service) runBarCloseConsumer(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msgs, err := s.broker.ReadGroup(ctx, events.StreamBarClose, consumerGroup, s.cfg.Consumer, 20, 2000)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			s.handleBarClose(ctx, m)
		}
	}
}

// handleTradePlan decodes and processes one trade_plan delivery. As with
// strategy's consumer, any error is event-ified and the message is
// always acked — a poison trade_plan never wedges the consumer group.
func (s *Service) handleTradePlan(ctx context.Context, m broker.Message) {
	defer s.ackTradePlan(ctx, m)

	var env events.Envelope
	if err := json.Unmarshal(m.Raw, &env); err != nil {
		s.publishDLQ(ctx, events.StreamTradePlan, m, "unmarshal envelope failed: "+err.Error())
		return
	}
	var payload events.TradePlanPayload
	if err := env.DecodePayload(&payload); err != nil {
		s.publishDLQ(ctx, events.StreamTradePlan, m, "decode payload failed: "+err.Error())
		return
	}
	s.admitTradePlan(ctx, env, payload)
}

func (s *Service) ackTradePlan(ctx context.Context, m broker.Message) {
	if err := s.broker.Ack(ctx, events.StreamTradePlan, consumerGroup, m.ID); err != nil {
		s.log.Error().Err(err).Str("id", m.ID).Msg("execution: ack trade_plan failed")
	}
}

func (s *Service) handleBarClose(ctx context.Context, m broker.Message) {
	defer s.ackBarClose(ctx, m)

	var env events.Envelope
	if err := json.Unmarshal(m.Raw, &env); err != nil {
		s.publishDLQ(ctx, events.StreamBarClose, m, "unmarshal envelope failed: "+err.Error())
		return
	}
	var payload events.BarClosePayload
	if err := env.DecodePayload(&payload); err != nil {
		s.publishDLQ(ctx, events.StreamBarClose, m, "decode payload failed: "+err.Error())
		return
	}

	if err := s.onBarCloseLifecycle(ctx, payload); err != nil {
		s.log.Warn().Err(err).Str("symbol", payload.Symbol).Msg("execution: lifecycle bar_close failed")
		s.emitRiskEvent(ctx, events.RiskEventPayload{
			Type: "LIFECYCLE_ERROR", Severity: "CRITICAL", Symbol: payload.Symbol, Detail: err.Error(),
		})
	}

	if s.cfg.ExecutionMode == "PAPER" || s.cfg.ExecutionMode == "BACKTEST" {
		if err := s.processPaperBarClose(ctx, payload); err != nil {
			s.log.Warn().Err(err).Str("symbol", payload.Symbol).Msg("execution: paper sim bar_close failed")
			s.emitRiskEvent(ctx, events.RiskEventPayload{
				Type: "LIFECYCLE_ERROR", Severity: "CRITICAL", Symbol: payload.Symbol, Detail: err.Error(),
			})
		}
	}
}

func (s *Service) ackBarClose(ctx context.Context, m broker.Message) {
	if err := s.broker.Ack(ctx, events.StreamBarClose, consumerGroup, m.ID); err != nil {
		s.log.Error().Err(err).Str("id", m.ID).Msg("execution: ack bar_close failed")
	}
}

// publishDLQ records a trade_plan/bar_close delivery that could not even
// be decoded onto the dlq stream for operator inspection. The original
// message is still acked by the caller — this consumer never retries a
// poison message locally.
func (s *Service) publishDLQ(ctx context.Context, stream string, m broker.Message, reason string) {
	if _, err := s.broker.PublishDLQ(ctx, nowMs(), stream, m.ID, reason, nil); err != nil {
		s.log.Error().Err(err).Str("stream", stream).Msg("execution: publish dlq failed")
	}
}

func nowMs() int64 { return time.Now().UnixMilli() }
