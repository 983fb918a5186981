package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVegasState_BullishWhenAboveBothEMAs(t *testing.T) {
	close := closeSeries(200, 100, 1) // steadily rising
	assert.Equal(t, "Bullish", VegasState(close, DefaultVegasFast, DefaultVegasSlow))
}

func TestVegasState_BearishWhenBelowBothEMAs(t *testing.T) {
	close := closeSeries(200, 300, -1) // steadily falling
	assert.Equal(t, "Bearish", VegasState(close, DefaultVegasFast, DefaultVegasSlow))
}

func TestVegasState_NeutralOnShortSeries(t *testing.T) {
	close := closeSeries(10, 100, 1)
	assert.Equal(t, "Neutral", VegasState(close, DefaultVegasFast, DefaultVegasSlow))
}

func TestEngulfing_BullishPattern(t *testing.T) {
	candles := []Candle{
		{Open: 10, Close: 9, High: 10.2, Low: 8.8},  // bearish prev
		{Open: 8.9, Close: 10.5, High: 10.6, Low: 8.8}, // bullish, engulfs prev body
	}
	assert.True(t, Engulfing(candles, BiasLong))
	assert.False(t, Engulfing(candles, BiasShort))
}

func TestEngulfing_BearishPattern(t *testing.T) {
	candles := []Candle{
		{Open: 9, Close: 10, High: 10.2, Low: 8.8},
		{Open: 10.1, Close: 8.5, High: 10.2, Low: 8.4},
	}
	assert.True(t, Engulfing(candles, BiasShort))
	assert.False(t, Engulfing(candles, BiasLong))
}

func TestEngulfing_TooFewCandles(t *testing.T) {
	assert.False(t, Engulfing([]Candle{{Open: 1, Close: 2}}, BiasLong))
}

func TestFVGProximity_BullishGapDetected(t *testing.T) {
	candles := []Candle{
		{Open: 100, Close: 100, High: 101, Low: 99},
		{Open: 101, Close: 103, High: 104, Low: 101},
		{Open: 103, Close: 101.5, High: 106, Low: 102}, // low(102) > high(i-2)=101 -> gap [101,102]
	}
	assert.True(t, FVGProximity(candles, BiasLong))
}

func TestFVGProximity_NoGapOnOverlappingCandles(t *testing.T) {
	candles := []Candle{
		{Open: 100, Close: 100, High: 101, Low: 99},
		{Open: 100, Close: 100, High: 101, Low: 99},
		{Open: 100, Close: 100, High: 101, Low: 99},
	}
	assert.False(t, FVGProximity(candles, BiasLong))
	assert.False(t, FVGProximity(candles, BiasShort))
}

func TestRSIDivergence_TooFewCandles(t *testing.T) {
	candles := make([]Candle, 10)
	assert.False(t, RSIDivergence(candles, BiasLong, 14))
}

func TestOBVDivergence_TooFewCandles(t *testing.T) {
	candles := make([]Candle, 10)
	assert.False(t, OBVDivergence(candles, BiasLong))
}
