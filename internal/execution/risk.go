package execution

// InstrumentFilters carries the exchange's quantization rules for one
// symbol, fetched via instruments-info.
type InstrumentFilters struct {
	QtyStep  float64
	MinQty   float64
	TickSize float64
}

// defaultInstrumentFilters are the conservative fallback values used
// when instruments-info fails.
var defaultInstrumentFilters = InstrumentFilters{QtyStep: 0.001, MinQty: 0.001, TickSize: 0.1}

// calcQty sizes a position so that a primary-SL hit loses exactly
// equity*riskPct: riskAmount/unitRisk, floored to qtyStep, then zeroed if
// under minQty.
func calcQty(equity, riskPct, entry, stop float64, filters InstrumentFilters) float64 {
	unitRisk := entry - stop
	if unitRisk < 0 {
		unitRisk = -unitRisk
	}
	if unitRisk <= 0 {
		return 0
	}
	raw := (equity * riskPct) / unitRisk
	qty := floorToStep(raw, filters.QtyStep)
	return clampMinOrZero(qty, filters.MinQty)
}

// splitTPQty divides total into the fixed TP1(40%)/TP2(40%)/runner(20%)
// staged exit. runner is the remainder rather than 0.2*total so the three
// legs always sum exactly to total regardless of floating-point error.
func splitTPQty(total float64) (tp1, tp2, runner float64) {
	tp1 = total * 0.4
	tp2 = total * 0.4
	runner = total - tp1 - tp2
	return
}

// tpPrices computes the 1R/2R take-profit levels for side, rounded to
// tickSize.
func tpPrices(side string, entry, stop, tickSize float64) (tp1, tp2 float64) {
	r := entry - stop
	if r < 0 {
		r = -r
	}
	if side == "BUY" {
		tp1, tp2 = entry+r, entry+2*r
	} else {
		tp1, tp2 = entry-r, entry-2*r
	}
	return roundToTick(tp1, tickSize), roundToTick(tp2, tickSize)
}
