package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macd3/futures-engine/internal/store"
)

func hourlyBar(symbol string, windowStartHour int, open, high, low, close, volume float64) store.Bar {
	const hourMs = 60 * 60 * 1000
	start := int64(windowStartHour) * hourMs
	return store.Bar{
		Symbol: symbol, Timeframe: "1h",
		OpenTimeMs: start, CloseTimeMs: start + hourMs,
		Open: open, High: high, Low: low, Close: close, Volume: volume,
		Source: "ws",
	}
}

func TestEightHourDeriver_EmitsOnlyOnWindowClose(t *testing.T) {
	d := newEightHourDeriver()
	for h := 0; h < 7; h++ {
		_, ok := d.Add(hourlyBar("BTCUSDT", h, 100, 101, 99, 100, 10))
		assert.False(t, ok, "hour %d should not close the window", h)
	}
	derived, ok := d.Add(hourlyBar("BTCUSDT", 7, 100, 105, 95, 103, 10))
	require.True(t, ok)
	assert.Equal(t, "8h", derived.Timeframe)
	assert.Equal(t, int64(0), derived.OpenTimeMs)
	assert.Equal(t, int64(8*60*60*1000), derived.CloseTimeMs)
	assert.Equal(t, 100.0, derived.Open)
	assert.Equal(t, 103.0, derived.Close)
	assert.Equal(t, 105.0, derived.High)
	assert.Equal(t, 95.0, derived.Low)
	assert.Equal(t, 80.0, derived.Volume)
	assert.Equal(t, "derived_8h", derived.Source)
}

func TestEightHourDeriver_SecondWindowStartsFresh(t *testing.T) {
	d := newEightHourDeriver()
	for h := 0; h < 8; h++ {
		d.Add(hourlyBar("BTCUSDT", h, 100, 101, 99, 100, 1))
	}
	for h := 8; h < 15; h++ {
		_, ok := d.Add(hourlyBar("BTCUSDT", h, 100, 101, 99, 100, 1))
		assert.False(t, ok)
	}
	derived, ok := d.Add(hourlyBar("BTCUSDT", 15, 100, 101, 99, 100, 1))
	require.True(t, ok)
	assert.Equal(t, int64(8*60*60*1000), derived.OpenTimeMs)
	assert.Equal(t, 8.0, derived.Volume)
}

func TestEightHourDeriver_TracksSymbolsIndependently(t *testing.T) {
	d := newEightHourDeriver()
	for h := 0; h < 7; h++ {
		d.Add(hourlyBar("BTCUSDT", h, 100, 101, 99, 100, 1))
	}
	_, ok := d.Add(hourlyBar("ETHUSDT", 0, 10, 11, 9, 10, 1))
	assert.False(t, ok)
}
