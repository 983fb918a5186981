// Package indicators computes the technical-analysis primitives the
// strategy service runs against closed bars: EMA/MACD, Wilder RSI,
// SMA-of-true-range ATR, OBV, fractal pivots, the three-segment MACD histogram divergence
// structure, Vegas channel state, and the confirmation signals (Engulfing,
// RSI/OBV divergence, FVG proximity). Undefined values (not enough data
// yet) are represented as math.NaN rather than a separate ok flag.
package indicators

import "math"

// EMA computes the exponential moving average over values with the given
// period, seeding the first `period-1` outputs with NaN (not enough data
// yet) and the period'th with a simple average.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	seed := sum / float64(period)
	out[period-1] = seed
	alpha := 2.0 / (float64(period) + 1.0)
	prev := seed
	for i := period; i < len(values); i++ {
		cur := alpha*values[i] + (1-alpha)*prev
		out[i] = cur
		prev = cur
	}
	return out
}

// MACD returns (macdLine, signalLine, histogram), each the same length as
// close. Gaps in macdLine (from the slow EMA's warm-up) are zero-filled
// before computing the signal EMA so the signal line doesn't inherit NaN
// propagation past the point both EMAs are live.
func MACD(close []float64, fast, slow, signal int) (macdLine, signalLine, histogram []float64) {
	emaFast := EMA(close, fast)
	emaSlow := EMA(close, slow)
	n := len(close)
	macdLine = make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(emaFast[i]) || math.IsNaN(emaSlow[i]) {
			macdLine[i] = math.NaN()
		} else {
			macdLine[i] = emaFast[i] - emaSlow[i]
		}
	}

	filled := make([]float64, n)
	for i, v := range macdLine {
		if math.IsNaN(v) {
			filled[i] = 0
		} else {
			filled[i] = v
		}
	}
	signalLine = EMA(filled, signal)

	histogram = make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(macdLine[i]) || math.IsNaN(signalLine[i]) {
			histogram[i] = math.NaN()
		} else {
			histogram[i] = macdLine[i] - signalLine[i]
		}
	}
	return macdLine, signalLine, histogram
}

// DefaultMACD runs MACD with the conventional 12/26/9 periods.
func DefaultMACD(close []float64) (macdLine, signalLine, histogram []float64) {
	return MACD(close, 12, 26, 9)
}
