package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// repricePrice mirrors repriceAndResubmit's bps walk without needing a
// live Service/bybit client: buys walk the limit price up toward the
// market, sells walk it down, scaled by attempt number.
func repricePrice(side string, price, repriceBps float64, attempt int) float64 {
	bps := repriceBps * float64(attempt) / 10_000
	if side == "BUY" {
		return price * (1 + bps)
	}
	return price * (1 - bps)
}

func TestRepricePrice_BuyWalksUpSellWalksDown(t *testing.T) {
	assert.InDelta(t, 100.5, repricePrice("BUY", 100, 50, 1), 1e-9)
	assert.InDelta(t, 99.5, repricePrice("SELL", 100, 50, 1), 1e-9)
}

func TestRepricePrice_ScalesWithAttemptNumber(t *testing.T) {
	first := repricePrice("BUY", 100, 50, 1)
	second := repricePrice("BUY", 100, 50, 2)
	assert.Greater(t, second, first)
}
