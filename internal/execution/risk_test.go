package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalcQty_SizesToRiskAmountOverUnitRisk(t *testing.T) {
	filters := InstrumentFilters{QtyStep: 0.001, MinQty: 0.001, TickSize: 0.1}
	qty := calcQty(10000, 0.005, 100, 98, filters)
	// riskAmount=50, unitRisk=2 -> raw=25, floored to step is unchanged
	assert.InDelta(t, 25.0, qty, 1e-9)
}

func TestCalcQty_ZeroUnitRiskReturnsZero(t *testing.T) {
	filters := InstrumentFilters{QtyStep: 0.001, MinQty: 0.001, TickSize: 0.1}
	assert.Equal(t, 0.0, calcQty(10000, 0.005, 100, 100, filters))
}

func TestCalcQty_BelowMinQtyReturnsZero(t *testing.T) {
	filters := InstrumentFilters{QtyStep: 0.001, MinQty: 30, TickSize: 0.1}
	assert.Equal(t, 0.0, calcQty(10000, 0.005, 100, 98, filters))
}

func TestSplitTPQty_SumsExactlyToTotal(t *testing.T) {
	tp1, tp2, runner := splitTPQty(25.0)
	assert.InDelta(t, 10.0, tp1, 1e-9)
	assert.InDelta(t, 10.0, tp2, 1e-9)
	assert.InDelta(t, 5.0, runner, 1e-9)
	assert.InDelta(t, 25.0, tp1+tp2+runner, 1e-9)
}

func TestTPPrices_LongIsAboveEntryShortIsBelow(t *testing.T) {
	tp1, tp2 := tpPrices("BUY", 100, 98, 0.1)
	assert.InDelta(t, 102.0, tp1, 1e-9)
	assert.InDelta(t, 104.0, tp2, 1e-9)

	tp1, tp2 = tpPrices("SELL", 100, 102, 0.1)
	assert.InDelta(t, 98.0, tp1, 1e-9)
	assert.InDelta(t, 96.0, tp2, 1e-9)
}
