// Command replay re-publishes a range of already-recorded bars from the
// bars table as bar_close events under a fixed run_id, letting
// strategy/execution/notifier run the real pipeline over historical data
// without touching the live ingestion path.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/broker"
	"github.com/macd3/futures-engine/pkg/config"
	"github.com/macd3/futures-engine/pkg/dbx"
)

func main() {
	symbol := flag.String("symbol", "", "symbol to replay (required)")
	timeframe := flag.String("timeframe", "1h", "bar timeframe to replay")
	limit := flag.Int("limit", 2000, "max bars to replay")
	sleepMs := flag.Int("sleep-ms", 5, "delay between publishes, to avoid overrunning consumers")
	runID := flag.String("run-id", "", "fixed run_id tag; generated from symbol/timeframe/start time if empty")
	flag.Parse()

	if *symbol == "" {
		fmt.Fprintln(os.Stderr, "replay: -symbol is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("replay: load config: %v", err)
	}

	db, err := dbx.Open(ctx, cfg.DatabaseURL, 5)
	if err != nil {
		log.Fatalf("replay: open database: %v", err)
	}
	defer db.Close()
	st := store.New(db)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("replay: parse redis url: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	br := broker.New(rdb)

	bars, err := st.ListBars(ctx, *symbol, *timeframe, *limit)
	if err != nil {
		log.Fatalf("replay: list bars: %v", err)
	}
	if len(bars) == 0 {
		log.Fatalf("replay: no bars found for %s/%s", *symbol, *timeframe)
	}

	tag := *runID
	if tag == "" {
		tag = generateRunID(*symbol, *timeframe)
	}

	log.Printf("replay: publishing %d bars for %s/%s under run_id=%s", len(bars), *symbol, *timeframe, tag)

	for seq, b := range bars {
		payload := events.BarClosePayload{
			Symbol:      b.Symbol,
			Timeframe:   b.Timeframe,
			CloseTimeMs: b.CloseTimeMs,
			IsFinal:     true,
			Source:      "derived",
			OHLCV: events.OHLCV{
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: b.Volume,
			},
		}
		env, err := events.NewEnvelope("replay", "", payload)
		if err != nil {
			log.Fatalf("replay: build envelope: %v", err)
		}
		env.Ext = map[string]any{"run_id": tag, "seq": seq}

		raw, err := json.Marshal(env)
		if err != nil {
			log.Fatalf("replay: marshal envelope: %v", err)
		}
		if _, err := br.Publish(ctx, events.StreamBarClose, raw, events.StreamBarClose); err != nil {
			log.Fatalf("replay: publish bar %d: %v", seq, err)
		}

		if *sleepMs > 0 {
			time.Sleep(time.Duration(*sleepMs) * time.Millisecond)
		}
	}

	log.Printf("replay: done, %d bars published under run_id=%s", len(bars), tag)
}

func generateRunID(symbol, timeframe string) string {
	seed := fmt.Sprintf("%s|%s|%d", symbol, timeframe, time.Now().UnixNano())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}
