package marketdata

import (
	"context"
	"fmt"

	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/bybit"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

// missingBarCloseTimes returns the close_time_ms of every bar strictly
// between lastCloseMs (exclusive) and newCloseMs (exclusive) on the
// fixed stride for tf. If lastCloseMs is 0 (no prior bar stored) it
// returns nil — a fresh symbol has nothing to backfill, it simply starts
// from the first bar it sees.
func missingBarCloseTimes(tf string, lastCloseMs, newCloseMs int64) ([]int64, error) {
	if lastCloseMs <= 0 {
		return nil, nil
	}
	stride, err := timeframe.MS(tf)
	if err != nil {
		return nil, err
	}
	var missing []int64
	for t := lastCloseMs + stride; t < newCloseMs; t += stride {
		missing = append(missing, t)
	}
	return missing, nil
}

// gapfillPageSize caps how many bars a single REST kline request backfills.
// Larger gaps are paginated across several requests instead of one call
// sized to the whole gap.
const gapfillPageSize = 200

// closeGap detects and backfills any bars missing between the last bar
// stored for (symbol, tf) and the bar ending at newCloseMs, fetching them
// over REST (paginated gapfillPageSize bars at a time) and publishing
// bar_close for each in ascending order: a reconnect or missed WS push
// must never leave a silent hole in the bar_close stream. A gap wider
// than maxGapBarsBeforeFullBackfill is capped to its most recent bars —
// the rest is logged and left as a permanent hole rather than blocking
// ingestion on an unbounded REST backfill.
func (s *Service) closeGap(ctx context.Context, symbol, tf string, newCloseMs int64) error {
	lastClose, err := s.store.LatestBarCloseTime(ctx, symbol, tf)
	if err != nil {
		return fmt.Errorf("marketdata: latest bar close time: %w", err)
	}

	missing, err := missingBarCloseTimes(tf, lastClose, newCloseMs)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	if len(missing) > maxGapBarsBeforeFullBackfill {
		s.log.Warn().Str("symbol", symbol).Str("timeframe", tf).
			Int("missing_bars", len(missing)).Int("capped_to", maxGapBarsBeforeFullBackfill).
			Msg("marketdata: gap exceeds max_gapfill_bars, backfilling only the most recent bars")
		missing = missing[len(missing)-maxGapBarsBeforeFullBackfill:]
	}

	interval, ok := timeframe.BybitInterval(tf)
	if !ok {
		return fmt.Errorf("marketdata: timeframe %q has no native rest interval for backfill", tf)
	}

	byClose := make(map[int64]bybit.Kline, len(missing))
	for start := 0; start < len(missing); start += gapfillPageSize {
		end := start + gapfillPageSize
		if end > len(missing) {
			end = len(missing)
		}
		page := missing[start:end]
		klines, err := s.client.GetKline(ctx, symbol, interval, page[0]-1, page[len(page)-1], len(page)+1)
		if err != nil {
			return fmt.Errorf("marketdata: rest backfill: %w", err)
		}
		stride := timeframe.MustMS(tf)
		for _, k := range klines {
			byClose[k.StartMs+stride] = k
		}
	}

	for _, closeTimeMs := range missing {
		k, ok := byClose[closeTimeMs]
		if !ok {
			s.log.Warn().Str("symbol", symbol).Str("timeframe", tf).Int64("close_time_ms", closeTimeMs).
				Msg("marketdata: gap bar not returned by exchange, leaving hole")
			continue
		}
		bar := store.Bar{
			Symbol: symbol, Timeframe: tf,
			CloseTimeMs: closeTimeMs, OpenTimeMs: k.StartMs,
			Open: k.Open, High: k.High, Low: k.Low, Close: k.Close,
			Volume: k.Volume, Turnover: k.Turnover, Source: "gapfill",
		}
		if err := s.publishBar(ctx, bar); err != nil {
			return fmt.Errorf("marketdata: publish gapfill bar: %w", err)
		}
	}
	return nil
}
