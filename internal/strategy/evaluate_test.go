package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macd3/futures-engine/internal/store"
)

func flatBars(n int, price, startCloseMs, strideMs int64) []store.Bar {
	bars := make([]store.Bar, n)
	for i := 0; i < n; i++ {
		p := float64(price)
		bars[i] = store.Bar{
			Symbol: "BTCUSDT", Timeframe: "1h",
			CloseTimeMs: startCloseMs + int64(i)*strideMs,
			OpenTimeMs:  startCloseMs + int64(i)*strideMs - strideMs,
			Open: p, High: p, Low: p, Close: p, Volume: 10,
		}
	}
	return bars
}

func TestEvaluate_TooFewBarsAborts(t *testing.T) {
	bars := flatBars(10, 100, 1000, 3600_000)
	_, ok := Evaluate("BTCUSDT", "1h", bars, 2)
	assert.False(t, ok)
}

func TestEvaluate_FlatSeriesHasNoDivergenceStructure(t *testing.T) {
	bars := flatBars(200, 100, 1000, 3600_000)
	_, ok := Evaluate("BTCUSDT", "1h", bars, 2)
	assert.False(t, ok)
}

func TestIsAutoTimeframe(t *testing.T) {
	auto := []string{"1h", "4h", "1d"}
	assert.True(t, isAutoTimeframe("1h", auto))
	assert.False(t, isAutoTimeframe("15m", auto))
}
