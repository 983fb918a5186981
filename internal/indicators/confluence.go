package indicators

// Candle is the minimal OHLCV shape the confirmation checks need. The
// strategy package converts events.OHLCV bars into these.
type Candle struct {
	Open, High, Low, Close, Volume float64
}

// VegasState classifies trend direction off the EMA144/EMA169 channel:
// Bullish when close is above both, Bearish when below both, Neutral
// otherwise. This is a strong directional gate only — no channel-width or
// slope refinement — to keep the criteria unambiguous and stable.
func VegasState(close []float64, fast, slow int) string {
	if len(close) < slow {
		return "Neutral"
	}
	e1 := EMA(close, fast)
	e2 := EMA(close, slow)
	last := close[len(close)-1]
	f := e1[len(e1)-1]
	s := e2[len(e2)-1]
	if isNaN(f) || isNaN(s) {
		return "Neutral"
	}
	if last > f && last > s {
		return "Bullish"
	}
	if last < f && last < s {
		return "Bearish"
	}
	return "Neutral"
}

// DefaultVegasFast/Slow are the standard Vegas tunnel periods, 144/169.
const (
	DefaultVegasFast = 144
	DefaultVegasSlow = 169
)

func isNaN(v float64) bool { return v != v }

// Engulfing reports a two-candle engulfing pattern in the trade direction:
// for LONG, a bearish candle followed by a bullish candle whose body fully
// contains the prior body; for SHORT, the mirror image.
func Engulfing(candles []Candle, direction Bias) bool {
	if len(candles) < 2 {
		return false
	}
	prev, cur := candles[len(candles)-2], candles[len(candles)-1]

	prevLo, prevHi := minmax(prev.Open, prev.Close)
	curLo, curHi := minmax(cur.Open, cur.Close)

	contains := curLo <= prevLo && curHi >= prevHi
	if direction == BiasLong {
		return prev.Close < prev.Open && cur.Close > cur.Open && contains
	}
	return prev.Close > prev.Open && cur.Close < cur.Open && contains
}

func minmax(a, b float64) (lo, hi float64) {
	if a < b {
		return a, b
	}
	return b, a
}

// RSIDivergence confirms divergence between price and RSI across the two
// most recent same-kind pivots: for LONG, a lower price low paired with a
// higher RSI low; for SHORT, a higher price high paired with a lower RSI
// high.
func RSIDivergence(candles []Candle, direction Bias, period int) bool {
	if len(candles) < period+20 {
		return false
	}
	close, high, low := splitOHLC(candles)
	r := RSI(close, period)

	if direction == BiasLong {
		piv := PivotLows(low, DefaultPivotLeft, DefaultPivotRight)
		if len(piv) < 2 {
			return false
		}
		p1, p2 := piv[len(piv)-2], piv[len(piv)-1]
		if p2.Price >= p1.Price {
			return false
		}
		if isNaN(r[p1.Index]) || isNaN(r[p2.Index]) {
			return false
		}
		return r[p2.Index] > r[p1.Index]
	}

	piv := PivotHighs(high, DefaultPivotLeft, DefaultPivotRight)
	if len(piv) < 2 {
		return false
	}
	p1, p2 := piv[len(piv)-2], piv[len(piv)-1]
	if p2.Price <= p1.Price {
		return false
	}
	if isNaN(r[p1.Index]) || isNaN(r[p2.Index]) {
		return false
	}
	return r[p2.Index] < r[p1.Index]
}

// OBVDivergence confirms divergence between price and OBV across the two
// most recent same-kind pivots: for LONG, a lower price low with a higher
// OBV; for SHORT, a higher price high with a lower OBV.
func OBVDivergence(candles []Candle, direction Bias) bool {
	if len(candles) < 50 {
		return false
	}
	close, high, low := splitOHLC(candles)
	vol := make([]float64, len(candles))
	for i, c := range candles {
		vol[i] = c.Volume
	}
	o := OBV(close, vol)

	if direction == BiasLong {
		piv := PivotLows(low, DefaultPivotLeft, DefaultPivotRight)
		if len(piv) < 2 {
			return false
		}
		p1, p2 := piv[len(piv)-2], piv[len(piv)-1]
		if p2.Price >= p1.Price {
			return false
		}
		return o[p2.Index] > o[p1.Index]
	}

	piv := PivotHighs(high, DefaultPivotLeft, DefaultPivotRight)
	if len(piv) < 2 {
		return false
	}
	p1, p2 := piv[len(piv)-2], piv[len(piv)-1]
	if p2.Price <= p1.Price {
		return false
	}
	return o[p2.Index] < o[p1.Index]
}

// defaultFVGLookback bounds how many recent candles FVGProximity scans.
const defaultFVGLookback = 50

// FVGProximity reports whether the current close sits inside the nearest
// fair-value gap behind it. A bullish FVG is the 3-candle gap where
// candle i's low clears candle i-2's high; bearish is the mirror.
func FVGProximity(candles []Candle, direction Bias) bool {
	if len(candles) < 3 {
		return false
	}
	window := candles
	if len(candles) > defaultFVGLookback {
		window = candles[len(candles)-defaultFVGLookback:]
	}
	curClose := window[len(window)-1].Close

	if direction == BiasLong {
		for i := len(window) - 1; i > 1; i-- {
			hi2 := window[i-2].High
			loI := window[i].Low
			if loI > hi2 {
				return hi2 <= curClose && curClose <= loI
			}
		}
		return false
	}

	for i := len(window) - 1; i > 1; i-- {
		lo2 := window[i-2].Low
		hiI := window[i].High
		if hiI < lo2 {
			return hiI <= curClose && curClose <= lo2
		}
	}
	return false
}

func splitOHLC(candles []Candle) (close, high, low []float64) {
	close = make([]float64, len(candles))
	high = make([]float64, len(candles))
	low = make([]float64, len(candles))
	for i, c := range candles {
		close[i] = c.Close
		high[i] = c.High
		low[i] = c.Low
	}
	return close, high, low
}
