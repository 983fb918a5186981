package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDivergenceStrength_FullShortenAndPriceMoveScoresNearMax(t *testing.T) {
	feat := DivergenceFeatures{
		Hist2: -10, Hist3: -1, // 90% shorten, well past the 15% full-mark threshold
		Price2: 100, Price3: 98, // 2% move, past the 1% full-mark threshold
		I1: 0, I2: 10, I3: 20, // perfectly symmetric spacing
	}
	score := DivergenceStrength(feat)
	assert.InDelta(t, 60.0, score, 1e-6)
}

func TestDivergenceStrength_NoShortenNoMoveIsLow(t *testing.T) {
	feat := DivergenceFeatures{
		Hist2: -5, Hist3: -5,
		Price2: 100, Price3: 100,
		I1: 0, I2: 10, I3: 20,
	}
	score := DivergenceStrength(feat)
	assert.InDelta(t, 10.0, score, 1e-6) // symmetry-only component
}

func TestConfluenceStrength_Thresholds(t *testing.T) {
	assert.Equal(t, 0.0, ConfluenceStrength(0, DefaultMinConfirmations))
	assert.Equal(t, 20.0, ConfluenceStrength(2, DefaultMinConfirmations))
	assert.Equal(t, 30.0, ConfluenceStrength(3, DefaultMinConfirmations))
	assert.Equal(t, 40.0, ConfluenceStrength(4, DefaultMinConfirmations))
}

func TestSignalQualityScore_ClampsToHundred(t *testing.T) {
	assert.Equal(t, 100.0, SignalQualityScore(80, 50))
}
