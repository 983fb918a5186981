package marketdata

import (
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

// eightHourDeriver accumulates confirmed 1h bars per symbol and emits a
// synthetic 8h bar once a window's final 1h bar arrives. Bybit has no
// native 8h kline, so this is the only source of 8h bar_close events.
type eightHourDeriver struct {
	windows map[string]*windowAccumulator
}

type windowAccumulator struct {
	symbol      string
	windowStart int64
	bars        []store.Bar
}

func newEightHourDeriver() *eightHourDeriver {
	return &eightHourDeriver{windows: make(map[string]*windowAccumulator)}
}

// Add feeds one confirmed 1h bar in. It returns the derived 8h bar and
// ok=true exactly when bar is the last 1h bar of its window (i.e. its
// close_time_ms lands on an 8h boundary). Bars from a stale window (an
// out-of-order delivery after the window already flushed) are dropped.
func (d *eightHourDeriver) Add(bar store.Bar) (store.Bar, bool) {
	windowStart := timeframe.WindowStart8h(bar.OpenTimeMs)

	acc, ok := d.windows[bar.Symbol]
	if ok && windowStart < acc.windowStart {
		return store.Bar{}, false
	}
	if !ok || acc.windowStart != windowStart {
		acc = &windowAccumulator{symbol: bar.Symbol, windowStart: windowStart}
		d.windows[bar.Symbol] = acc
	}
	acc.bars = append(acc.bars, bar)

	windowEnd := windowStart + 8*60*60*1000
	if bar.CloseTimeMs < windowEnd {
		return store.Bar{}, false
	}

	derived := combineBars(acc.bars, windowStart, windowEnd)
	d.windows[bar.Symbol] = &windowAccumulator{symbol: bar.Symbol, windowStart: windowEnd}
	return derived, true
}

// combineBars folds a run of same-symbol 1h bars into one 8h OHLCV:
// open from the first bar, close from the last, high/low as the
// extremes, volume/turnover summed.
func combineBars(bars []store.Bar, windowStart, windowEnd int64) store.Bar {
	first, last := bars[0], bars[len(bars)-1]
	out := store.Bar{
		Symbol: first.Symbol, Timeframe: "8h",
		OpenTimeMs: windowStart, CloseTimeMs: windowEnd,
		Open: first.Open, Close: last.Close,
		High: first.High, Low: first.Low,
		Source: "derived_8h",
	}
	for _, b := range bars {
		if b.High > out.High {
			out.High = b.High
		}
		if b.Low < out.Low {
			out.Low = b.Low
		}
		out.Volume += b.Volume
		out.Turnover += b.Turnover
	}
	return out
}
