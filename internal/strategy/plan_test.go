package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedTPRules_MatchesStagedExitContract(t *testing.T) {
	r := fixedTPRules("ATR")
	assert.Equal(t, 1.0, r.TP1.R)
	assert.Equal(t, 0.4, r.TP1.Pct)
	assert.Equal(t, 2.0, r.TP2.R)
	assert.Equal(t, 0.4, r.TP2.Pct)
	assert.Equal(t, 0.2, r.Tp3Trail.Pct)
	assert.Equal(t, "ATR", r.Tp3Trail.Mode)
	assert.True(t, r.ReduceOnly)
}

func TestSecondarySLRule_IsFixedType(t *testing.T) {
	assert.Equal(t, "NEXT_BAR_NOT_SHORTEN_EXIT", secondarySLRule().Type)
}

func TestSide_MapsBiasToOrderSide(t *testing.T) {
	assert.Equal(t, "BUY", side("LONG"))
	assert.Equal(t, "SELL", side("SHORT"))
}

func TestPlanValidityWindow_SpansOneBarStride(t *testing.T) {
	validFrom, expiresAt := planValidityWindow(1_000_000, "1h")
	assert.Equal(t, int64(1_000_000), validFrom)
	assert.Equal(t, int64(1_000_000+3600_000), expiresAt)
}
