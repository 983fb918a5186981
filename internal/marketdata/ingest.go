package marketdata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/bybit"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

// maxGapBarsBeforeFullBackfill bounds how many bars closeGap will ever
// backfill for a single gap, regardless of how far back the gap extends.
const maxGapBarsBeforeFullBackfill = 500

// handleConfirmedKline is called for every confirmed public WS kline
// push. It persists the bar, closes any gap since the last stored bar
// for this (symbol, timeframe) via REST backfill, publishes bar_close
// for the new bar (and any backfilled ones, oldest first), and feeds 1h
// closes into the 8h deriver.
func (s *Service) handleConfirmedKline(ctx context.Context, ev bybit.KlineEvent) error {
	tf := reverseInterval(ev.Interval)
	if tf == "" {
		return fmt.Errorf("marketdata: unknown ws interval %q", ev.Interval)
	}

	if err := s.closeGap(ctx, ev.Symbol, tf, ev.EndMs); err != nil {
		s.log.Warn().Err(err).Str("symbol", ev.Symbol).Str("timeframe", tf).Msg("marketdata: gap backfill failed")
	}

	bar := store.Bar{
		Symbol: ev.Symbol, Timeframe: tf,
		CloseTimeMs: ev.EndMs, OpenTimeMs: ev.StartMs,
		Open: ev.Open, High: ev.High, Low: ev.Low, Close: ev.Close,
		Volume: ev.Volume, Turnover: ev.Turnover, Source: "ws",
	}
	if err := s.publishBar(ctx, bar); err != nil {
		return err
	}

	if tf == "1h" {
		if done, ok := s.hourly.Add(bar); ok {
			if err := s.publishBar(ctx, done); err != nil {
				return fmt.Errorf("marketdata: publish derived 8h bar: %w", err)
			}
		}
	}
	return nil
}

// reverseInterval maps a Bybit WS interval code back to the system's
// timeframe identifier.
func reverseInterval(interval string) string {
	for _, tf := range []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"} {
		if code, ok := timeframe.BybitInterval(tf); ok && code == interval {
			return tf
		}
	}
	return ""
}

// publishBar stores the bar, checks the bar_close_emits idempotency
// table, and publishes bar_close only if this (symbol, timeframe,
// close_time_ms) hasn't been emitted before — the bar-close
// idempotency invariant.
func (s *Service) publishBar(ctx context.Context, bar store.Bar) error {
	if err := s.store.InsertBar(ctx, bar); err != nil {
		return fmt.Errorf("marketdata: insert bar: %w", err)
	}

	payload := events.BarClosePayload{
		Symbol: bar.Symbol, Timeframe: bar.Timeframe, CloseTimeMs: bar.CloseTimeMs,
		IsFinal: true, Source: bar.Source,
		OHLCV: events.OHLCV{Open: bar.Open, High: bar.High, Low: bar.Low, Close: bar.Close, Volume: bar.Volume},
	}
	env, err := events.NewEnvelope("marketdata", "", payload)
	if err != nil {
		return fmt.Errorf("marketdata: build envelope: %w", err)
	}

	inserted, err := s.store.InsertBarCloseEmit(ctx, store.BarCloseEmit{
		Symbol: bar.Symbol, Timeframe: bar.Timeframe, CloseTimeMs: bar.CloseTimeMs,
		EventID: env.EventID, EmittedAtMs: env.TsMs,
	})
	if err != nil {
		return fmt.Errorf("marketdata: record bar_close_emit: %w", err)
	}

	for _, issue := range s.quality.checkBar(bar, nowMs(), !inserted) {
		s.emitRiskEvent(ctx, events.RiskEventPayload{
			Type: issue.Type, Severity: "INFO", Symbol: bar.Symbol, Detail: issue.Detail,
			Ext: map[string]any{"timeframe": bar.Timeframe, "close_time_ms": bar.CloseTimeMs},
		})
	}

	if !inserted {
		return nil // already emitted by a prior run or duplicate WS delivery
	}

	raw, err := marshalEnvelope(env)
	if err != nil {
		return err
	}
	if _, err := s.broker.Publish(ctx, events.StreamBarClose, raw, events.StreamBarClose); err != nil {
		return fmt.Errorf("marketdata: publish bar_close: %w", err)
	}
	return nil
}

func marshalEnvelope(env events.Envelope) (json.RawMessage, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marketdata: marshal envelope: %w", err)
	}
	return raw, nil
}
