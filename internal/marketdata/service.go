// Package marketdata owns the only path bar data enters the system
// through: it consumes Bybit's public kline WS, backfills gaps over
// REST, derives the synthetic 8h timeframe from eight confirmed 1h bars,
// runs per-bar data-quality checks, and publishes one deduplicated
// bar_close event per (symbol, timeframe, close_time_ms).
package marketdata

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/broker"
	"github.com/macd3/futures-engine/pkg/bybit"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

// Service wires the WS ingestion loop, gap backfill, 8h derivation, and
// bar_close publication together for one exchange client.
type Service struct {
	store  *store.Store
	broker *broker.Client
	client *bybit.Client
	public *bybit.PublicStream
	log    zerolog.Logger

	symbols    []string
	timeframes []string

	hourly  *eightHourDeriver
	state   *marketState
	quality *qualityTracker
}

// State reports the current feed health for symbol (LIVE/RECONNECTING/
// DEGRADED). It is not consulted by the api service's /healthz or by
// execution's admission pipeline.
func (s *Service) State(symbol string) State { return s.state.Get(symbol) }

// Config is the set of symbols/timeframes this service instance watches.
type Config struct {
	Symbols    []string
	Timeframes []string // native timeframes only; "8h" is always derived
}

// New builds a Service. public may be nil in tests that only exercise the
// pure gap/derivation logic below.
func New(st *store.Store, br *broker.Client, cl *bybit.Client, public *bybit.PublicStream, log zerolog.Logger, cfg Config) *Service {
	return &Service{
		store:      st,
		broker:     br,
		client:     cl,
		public:     public,
		log:        log,
		symbols:    cfg.Symbols,
		timeframes: cfg.Timeframes,
		hourly:     newEightHourDeriver(),
		state:      newMarketState(),
		quality:    newQualityTracker(),
	}
}

// Run starts the WS ingestion loop and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	topics := make([]string, 0, len(s.symbols)*len(s.timeframes))
	for _, tf := range s.timeframes {
		interval, ok := bybitIntervalOrLog(s.log, tf)
		if !ok {
			continue
		}
		for _, sym := range s.symbols {
			topics = append(topics, klineTopic(interval, sym))
		}
	}

	out := make(chan bybit.KlineEvent, 256)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.public.Run(ctx, topics, out, func(attempt int) {
			s.log.Warn().Int("attempt", attempt).Msg("marketdata: public ws reconnecting")
			for _, sym := range s.symbols {
				s.state.OnReconnect(sym)
			}
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case ev := <-out:
			s.state.OnConnected(ev.Symbol)
			if !ev.Confirm {
				continue
			}
			if err := s.handleConfirmedKline(ctx, ev); err != nil {
				s.log.Error().Err(err).Str("symbol", ev.Symbol).Msg("marketdata: handle kline")
			}
		}
	}
}

func klineTopic(interval, symbol string) string { return "kline." + interval + "." + symbol }

func bybitIntervalOrLog(log zerolog.Logger, tf string) (string, bool) {
	interval, ok := timeframe.BybitInterval(tf)
	if !ok {
		log.Warn().Str("timeframe", tf).Msg("marketdata: timeframe has no native ws interval, skipping subscription")
	}
	return interval, ok
}
