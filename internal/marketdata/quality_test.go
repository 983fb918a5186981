package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
)

func issueTypes(issues []qualityIssue) []string {
	out := make([]string, len(issues))
	for i, iss := range issues {
		out[i] = iss.Type
	}
	return out
}

func TestQualityTracker_CleanBarHasNoIssues(t *testing.T) {
	qt := newQualityTracker()
	bar := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 1_000_000, Close: 100, Volume: 5}
	assert.Empty(t, qt.checkBar(bar, bar.CloseTimeMs, false))
}

func TestQualityTracker_Duplicate(t *testing.T) {
	qt := newQualityTracker()
	bar := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 1_000_000, Close: 100, Volume: 5}
	assert.Contains(t, issueTypes(qt.checkBar(bar, bar.CloseTimeMs, true)), events.RiskBarDuplicate)
}

func TestQualityTracker_DataLag(t *testing.T) {
	qt := newQualityTracker()
	bar := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 1_000_000, Close: 100, Volume: 5}
	now := bar.CloseTimeMs + 3*60*60*1000 // 3 strides behind, past the 2-stride tolerance
	assert.Contains(t, issueTypes(qt.checkBar(bar, now, false)), events.RiskDataLag)
}

func TestQualityTracker_NoLagWithinTolerance(t *testing.T) {
	qt := newQualityTracker()
	bar := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 1_000_000, Close: 100, Volume: 5}
	now := bar.CloseTimeMs + 60*60*1000 // 1 stride behind
	assert.NotContains(t, issueTypes(qt.checkBar(bar, now, false)), events.RiskDataLag)
}

func TestQualityTracker_PriceJump(t *testing.T) {
	qt := newQualityTracker()
	first := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 1_000_000, Close: 100, Volume: 5}
	qt.checkBar(first, first.CloseTimeMs, false)

	jumped := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 1_003_600_000, Close: 130, Volume: 5}
	assert.Contains(t, issueTypes(qt.checkBar(jumped, jumped.CloseTimeMs, false)), events.RiskPriceJump)
}

func TestQualityTracker_NoPriceJumpOnFirstBar(t *testing.T) {
	qt := newQualityTracker()
	bar := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 1_000_000, Close: 100_000, Volume: 5}
	assert.NotContains(t, issueTypes(qt.checkBar(bar, bar.CloseTimeMs, false)), events.RiskPriceJump)
}

func TestQualityTracker_VolumeAnomaly(t *testing.T) {
	qt := newQualityTracker()
	for i := 0; i < 10; i++ {
		bar := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: int64(1_000_000 + i), Close: 100, Volume: 10}
		qt.checkBar(bar, bar.CloseTimeMs, false)
	}
	spike := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 2_000_000, Close: 100, Volume: 1000}
	assert.Contains(t, issueTypes(qt.checkBar(spike, spike.CloseTimeMs, false)), events.RiskVolumeAnomaly)
}

func TestQualityTracker_SeparateSymbolsIndependent(t *testing.T) {
	qt := newQualityTracker()
	btc := store.Bar{Symbol: "BTCUSDT", Timeframe: "1h", CloseTimeMs: 1_000_000, Close: 100, Volume: 5}
	qt.checkBar(btc, btc.CloseTimeMs, false)

	eth := store.Bar{Symbol: "ETHUSDT", Timeframe: "1h", CloseTimeMs: 1_003_600_000, Close: 200, Volume: 5}
	assert.NotContains(t, issueTypes(qt.checkBar(eth, eth.CloseTimeMs, false)), events.RiskPriceJump)
}
