// Command marketdata ingests Bybit kline closes, persists bars, derives
// 8h candles, and publishes bar_close events for the rest of the fleet.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/macd3/futures-engine/internal/marketdata"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/bybit"
	"github.com/macd3/futures-engine/pkg/broker"
	"github.com/macd3/futures-engine/pkg/config"
	"github.com/macd3/futures-engine/pkg/dbx"
	"github.com/macd3/futures-engine/pkg/logging"
	"github.com/macd3/futures-engine/pkg/metrics"
	"github.com/macd3/futures-engine/pkg/ratelimit"
)

func main() {
	log := logging.New("marketdata")

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

	public := bybit.NewPublicStream(cfg.BybitWSPublicURL)

	reg := prometheus.NewRegistry()
	metrics.New("marketdata", reg)
	go func() {
		if err := metrics.Serve(":"+cfg.MetricsPort, reg); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	svc := marketdata.New(st, br, bc, public, log, marketdata.Config{
		Symbols:    cfg.Symbols,
		Timeframes: nativeTimeframes(cfg.AutoTimeframes, cfg.MonitorTimeframes),
	})

	log.Info().Strs("symbols", cfg.Symbols).Msg("marketdata starting")
	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("marketdata stopped")
	}
	log.Info().Msg("marketdata shut down")
}

// nativeTimeframes unions the strategy's auto-trade and monitor-only
// timeframe lists, minus "8h" which marketdata always derives itself
// from native 1h closes rather than subscribing to it directly.
func nativeTimeframes(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, tf := range l {
			if tf == "8h" || seen[tf] {
				continue
			}
			seen[tf] = true
			out = append(out, tf)
		}
	}
	return out
}
