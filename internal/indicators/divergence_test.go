package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectThreeSegmentDivergence_TooFewBars(t *testing.T) {
	close := closeSeries(50, 100, 0)
	_, ok := DetectThreeSegmentDivergence(close, close, close)
	assert.False(t, ok)
}

func TestDetectThreeSegmentDivergence_FlatSeriesNoPivots(t *testing.T) {
	close := make([]float64, 150)
	for i := range close {
		close[i] = 100
	}
	_, ok := DetectThreeSegmentDivergence(close, close, close)
	assert.False(t, ok)
}
