// Command execution consumes trade_plan/bar_close, drives order
// placement through the admission/lifecycle pipeline, and manages open
// positions against Bybit.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/macd3/futures-engine/internal/execution"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/broker"
	"github.com/macd3/futures-engine/pkg/bybit"
	"github.com/macd3/futures-engine/pkg/config"
	"github.com/macd3/futures-engine/pkg/dbx"
	"github.com/macd3/futures-engine/pkg/logging"
	"github.com/macd3/futures-engine/pkg/metrics"
	"github.com/macd3/futures-engine/pkg/ratelimit"
)

func main() {
	log := logging.New("execution")

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

	limiter := ratelimit.New(map[ratelimit.Group]ratelimit.GroupConfig{
		ratelimit.GroupPublic:              {RPS: cfg.PublicRPS, Burst: cfg.PublicBurst},
		ratelimit.GroupPrivateCritical:     {RPS: cfg.PrivateCriticalRPS, Burst: cfg.PrivateCriticalBurst},
		ratelimit.GroupPrivateOrderQuery:   {RPS: cfg.PrivateOrderQueryRPS, Burst: cfg.PrivateOrderQueryBurst},
		ratelimit.GroupPrivateAccountQuery: {RPS: cfg.PrivateAccountQueryRPS, Burst: cfg.PrivateAccountQueryBurst},
	}, cfg.PublicRPS, cfg.PublicBurst, cfg.MaxWait())

	bc := bybit.NewClient(bybit.Config{
		APIKey:      cfg.BybitAPIKey,
		APISecret:   cfg.BybitAPISecret,
		RESTBaseURL: cfg.BybitRESTBaseURL,
		Category:    cfg.BybitCategory,
		RecvWindow:  cfg.BybitRecvWindow,
	}, limiter)

	reg := prometheus.NewRegistry()
	metrics.New("execution", reg)
	go func() {
		if err := metrics.Serve(":"+cfg.MetricsPort, reg); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	svc := execution.New(st, br, bc, log, execution.Config{
		Consumer: cfg.RedisStreamConsumer,

		ExecutionMode:   cfg.ExecutionMode,
		RunnerTrailMode: cfg.RunnerTrailMode,
		RunnerATRPeriod: cfg.RunnerATRPeriod,
		RunnerATRMult:   cfg.RunnerATRMult,
		PaperEquity:     cfg.PaperEquity,

		MaxOpenPositionsDefault: cfg.MaxOpenPositionsDefault,
		DailyDrawdownSoftPct:    cfg.DailyDrawdownSoftPct,
		DailyDrawdownHardPct:    cfg.DailyDrawdownHardPct,
		KillSwitchForceOn:       cfg.KillSwitchForceOn,

		CooldownEnabled: cfg.CooldownEnabled,
		CooldownBars:    cfg.CooldownBars,

		EntryOrderType:            cfg.EntryOrderType,
		EntryTimeoutMs:            cfg.EntryTimeoutMs,
		EntryPartialFillTimeoutMs: cfg.EntryPartialFillTimeoutMs,
		EntryMaxRetries:           cfg.EntryMaxRetries,
		EntryRepriceBps:           cfg.EntryRepriceBps,
		EntryFallbackMarket:       cfg.EntryFallbackMarket,

		BybitPositionIdx: cfg.BybitPositionIdx,
		LockTTL:          time.Duration(cfg.LockTTLMs) * time.Millisecond,
		KillSwitchWindow: time.Duration(cfg.KillSwitchWindowHours) * time.Hour,

		PrivateWSURL:   cfg.BybitWSPrivateURL,
		BybitAPIKey:    cfg.BybitAPIKey,
		BybitAPISecret: cfg.BybitAPISecret,
	})

	log.Info().Str("mode", cfg.ExecutionMode).Msg("execution starting")
	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("execution stopped")
	}
	log.Info().Msg("execution shut down")
}
