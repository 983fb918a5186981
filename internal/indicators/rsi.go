package indicators

import "math"

// RSI computes the Relative Strength Index using Wilder smoothing: the
// initial average gain/loss is a simple average over the first `period`
// diffs, then each subsequent average is the recursive Wilder update
// (avg*(period-1)+new)/period. RSI is 100 when avg_loss is (near) zero.
func RSI(close []float64, period int) []float64 {
	out := make([]float64, len(close))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(close) < period+1 {
		return out
	}

	gainSum, lossSum := 0.0, 0.0
	for i := 1; i <= period; i++ {
		d := close[i] - close[i-1]
		if d > 0 {
			gainSum += d
		} else {
			lossSum += -d
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAverages(avgGain, avgLoss)

	for i := period + 1; i < len(close); i++ {
		d := close[i] - close[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAverages(avgGain, avgLoss)
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// DefaultRSI runs RSI with the conventional 14-period window.
func DefaultRSI(close []float64) []float64 {
	return RSI(close, 14)
}

// ATR computes the Average True Range as a simple moving average of true
// range — a true sliding window, not Wilder's recursive smoothing. This
// is the variant the runner's ATR trailing-stop mode calls.
func ATR(high, low, close []float64, period int) []float64 {
	n := len(close)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || n < period+1 {
		return out
	}

	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	out[period] = sum / float64(period)
	for i := period + 1; i < n; i++ {
		sum += tr[i] - tr[i-period]
		out[i] = sum / float64(period)
	}
	return out
}
