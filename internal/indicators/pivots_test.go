package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPivotHighs_FindsLocalMax(t *testing.T) {
	high := []float64{1, 2, 3, 5, 3, 2, 1, 2, 3, 4, 2, 1}
	pivots := PivotHighs(high, 2, 2)
	require.Len(t, pivots, 2)
	assert.Equal(t, 3, pivots[0].Index)
	assert.Equal(t, 5.0, pivots[0].Price)
	assert.Equal(t, 9, pivots[1].Index)
	assert.Equal(t, 4.0, pivots[1].Price)
}

func TestPivotLows_FindsLocalMin(t *testing.T) {
	low := []float64{5, 4, 3, 1, 3, 4, 5, 4, 3, 2, 4, 5}
	pivots := PivotLows(low, 2, 2)
	require.Len(t, pivots, 2)
	assert.Equal(t, 3, pivots[0].Index)
	assert.Equal(t, 1.0, pivots[0].Price)
	assert.Equal(t, 9, pivots[1].Index)
	assert.Equal(t, 2.0, pivots[1].Price)
}

func TestPivotHighs_NoPivotsOnMonotonic(t *testing.T) {
	high := closeSeries(10, 1, 1)
	assert.Empty(t, PivotHighs(high, 2, 2))
}

func TestPivotHighs_TooShortSeries(t *testing.T) {
	assert.Empty(t, PivotHighs([]float64{1, 2, 3}, 2, 2))
}
