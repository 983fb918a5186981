package indicators

import "math"

// Bias mirrors the SignalPayload bias values ("LONG"/"SHORT") at
// the indicator layer, kept string-typed so the strategy package can pass
// it straight through to the event payload without translation.
type Bias string

const (
	BiasLong  Bias = "LONG"
	BiasShort Bias = "SHORT"
)

// DivergenceSetup is the three-segment MACD histogram divergence
// structure: three same-kind price pivots (P1,P2,P3, oldest to newest)
// with their corresponding histogram values.
type DivergenceSetup struct {
	Direction  Bias
	P1, P2, P3 Pivot
	H1, H2, H3 float64
}

// minBarsForDivergence is the warm-up floor: MACD/EMA need this many bars
// before their pivots are trustworthy.
const minBarsForDivergence = 120

// DetectThreeSegmentDivergence looks for the most recent three-segment
// divergence in close/high/low. It returns ok=false if none is found or
// there isn't enough history yet.
//
// LONG (bottom divergence): price makes progressively lower lows while the
// MACD histogram at those same pivots rises (less negative) each time.
// SHORT (top divergence): price makes progressively higher highs while the
// histogram falls (less positive) each time.
//
// This only reports the structure; it does not decide whether to trade —
// that still requires the Vegas filter and confirmation threshold.
func DetectThreeSegmentDivergence(close, high, low []float64) (DivergenceSetup, bool) {
	if len(close) < minBarsForDivergence {
		return DivergenceSetup{}, false
	}

	_, _, hist := DefaultMACD(close)

	lows := PivotLows(low, DefaultPivotLeft, DefaultPivotRight)
	highs := PivotHighs(high, DefaultPivotLeft, DefaultPivotRight)

	histAt := func(p Pivot) (float64, bool) {
		v := hist[p.Index]
		return v, !math.IsNaN(v)
	}

	if len(lows) >= 3 {
		p1, p2, p3 := lows[len(lows)-3], lows[len(lows)-2], lows[len(lows)-1]
		h1, ok1 := histAt(p1)
		h2, ok2 := histAt(p2)
		h3, ok3 := histAt(p3)
		if ok1 && ok2 && ok3 && p1.Price > p2.Price && p2.Price > p3.Price && h1 < h2 && h2 < h3 {
			return DivergenceSetup{Direction: BiasLong, P1: p1, P2: p2, P3: p3, H1: h1, H2: h2, H3: h3}, true
		}
	}

	if len(highs) >= 3 {
		p1, p2, p3 := highs[len(highs)-3], highs[len(highs)-2], highs[len(highs)-1]
		h1, ok1 := histAt(p1)
		h2, ok2 := histAt(p2)
		h3, ok3 := histAt(p3)
		if ok1 && ok2 && ok3 && p1.Price < p2.Price && p2.Price < p3.Price && h1 > h2 && h2 > h3 {
			return DivergenceSetup{Direction: BiasShort, P1: p1, P2: p2, P3: p3, H1: h1, H2: h2, H3: h3}, true
		}
	}

	return DivergenceSetup{}, false
}
