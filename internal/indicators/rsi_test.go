package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRSI_AllGainsIs100(t *testing.T) {
	vals := closeSeries(20, 10, 1) // strictly increasing
	out := DefaultRSI(vals)
	assert.InDelta(t, 100.0, out[len(out)-1], 1e-9)
}

func TestRSI_AllLossesIsZero(t *testing.T) {
	vals := closeSeries(20, 30, -1) // strictly decreasing
	out := DefaultRSI(vals)
	assert.InDelta(t, 0.0, out[len(out)-1], 1e-9)
}

func TestRSI_WarmupIsNaN(t *testing.T) {
	vals := closeSeries(10, 10, 1)
	out := RSI(vals, 14)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestRSI_FlatSeriesIs100(t *testing.T) {
	vals := make([]float64, 20)
	for i := range vals {
		vals[i] = 50
	}
	out := DefaultRSI(vals)
	// no gains and no losses at all -> avgLoss is 0 -> defined as 100
	assert.InDelta(t, 100.0, out[len(out)-1], 1e-9)
}

func TestOBV_CumulativeAndFlat(t *testing.T) {
	close := []float64{10, 11, 11, 9, 9.5}
	vol := []float64{100, 50, 50, 30, 20}
	out := OBV(close, vol)
	assert.Equal(t, []float64{0, 50, 50, 20, 40}, out)
}
