// Command notifier renders execution_report and risk_event messages and
// delivers them to the configured outbound webhook with persistent retry.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/macd3/futures-engine/internal/notifier"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/broker"
	"github.com/macd3/futures-engine/pkg/config"
	"github.com/macd3/futures-engine/pkg/dbx"
	"github.com/macd3/futures-engine/pkg/logging"
	"github.com/macd3/futures-engine/pkg/metrics"
)

func main() {
	log := logging.New("notifier")

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
	metrics.New("notifier", reg)
	go func() {
		if err := metrics.Serve(":"+cfg.MetricsPort, reg); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	sender := notifier.NewHTTPSender(cfg.MessengerWebhookURL)
	svc := notifier.New(st, br, sender, log, notifier.Config{
		Consumer:            cfg.RedisStreamConsumer,
		MessengerWebhookURL: cfg.MessengerWebhookURL,
	})

	log.Info().Msg("notifier starting")
	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("notifier stopped")
	}
	log.Info().Msg("notifier shut down")
}
