// Command strategy consumes bar_close, evaluates the three-segment MACD
// divergence pipeline, and emits signal/trade_plan events.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/internal/strategy"
	"github.com/macd3/futures-engine/pkg/broker"
	"github.com/macd3/futures-engine/pkg/config"
	"github.com/macd3/futures-engine/pkg/dbx"
	"github.com/macd3/futures-engine/pkg/logging"
	"github.com/macd3/futures-engine/pkg/metrics"
)

func main() {
	log := logging.New("strategy")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := dbx.Open(ctx, cfg.DatabaseURL, 30)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := dbx.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}
	st := store.New(db)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	br := broker.New(rdb)

	reg := prometheus.NewRegistry()
	metrics.New("strategy", reg)
	go func() {
		if err := metrics.Serve(":"+cfg.MetricsPort, reg); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	svc := strategy.New(st, br, log, strategy.Config{
		MinConfirmations: cfg.MinConfirmations,
		AutoTimeframes:   cfg.AutoTimeframes,
		RunnerTrailMode:  cfg.RunnerTrailMode,
		RiskPct:          cfg.RiskPct,
		MaxOpenPositions: cfg.MaxOpenPositionsDefault,
		Consumer:         cfg.RedisStreamConsumer,
	})

	log.Info().Strs("auto_timeframes", cfg.AutoTimeframes).Msg("strategy starting")
	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("strategy stopped")
	}
	log.Info().Msg("strategy shut down")
}
