package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeSeries(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestEMA_WarmupIsNaN(t *testing.T) {
	vals := closeSeries(5, 10, 1)
	out := EMA(vals, 10)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestEMA_SeedIsSimpleAverage(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	out := EMA(vals, 5)
	require.False(t, math.IsNaN(out[4]))
	assert.InDelta(t, 3.0, out[4], 1e-9)
}

func TestEMA_RecursesAfterSeed(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5, 6}
	out := EMA(vals, 5)
	seed := out[4]
	alpha := 2.0 / 6.0
	want := alpha*vals[5] + (1-alpha)*seed
	assert.InDelta(t, want, out[5], 1e-9)
}

func TestDefaultMACD_HistogramIsDifference(t *testing.T) {
	vals := closeSeries(60, 100, 0.5)
	macdLine, signalLine, hist := DefaultMACD(vals)
	for i := range vals {
		if math.IsNaN(macdLine[i]) || math.IsNaN(signalLine[i]) {
			assert.True(t, math.IsNaN(hist[i]))
			continue
		}
		assert.InDelta(t, macdLine[i]-signalLine[i], hist[i], 1e-9)
	}
}

func TestATR_WarmupIsNaN(t *testing.T) {
	high := closeSeries(5, 11, 1)
	low := closeSeries(5, 9, 1)
	close := closeSeries(5, 10, 1)
	out := ATR(high, low, close, 14)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestATR_PositiveAfterWarmup(t *testing.T) {
	n := 30
	high := make([]float64, n)
	low := make([]float64, n)
	close := make([]float64, n)
	for i := 0; i < n; i++ {
		close[i] = 100 + float64(i%3)
		high[i] = close[i] + 1
		low[i] = close[i] - 1
	}
	out := ATR(high, low, close, 14)
	require.False(t, math.IsNaN(out[14]))
	assert.Greater(t, out[14], 0.0)
}
