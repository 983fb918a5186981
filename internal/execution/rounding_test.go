package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorToStep_RoundsDownToMultiple(t *testing.T) {
	assert.InDelta(t, 0.123, floorToStep(0.1239, 0.001), 1e-9)
	assert.Equal(t, 5.0, floorToStep(5.9, 0))
}

func TestRoundToTick_RoundsToNearestMultiple(t *testing.T) {
	assert.InDelta(t, 100.5, roundToTick(100.48, 0.5), 1e-9)
	assert.Equal(t, 100.48, roundToTick(100.48, 0))
}

func TestClampMinOrZero_ZeroesBelowMinimumRatherThanClampingUp(t *testing.T) {
	assert.Equal(t, 0.0, clampMinOrZero(0.0004, 0.001))
	assert.Equal(t, 0.002, clampMinOrZero(0.002, 0.001))
}

func TestClamp_BoundsToRange(t *testing.T) {
	assert.Equal(t, 1.0, clamp(-5, 1, 10))
	assert.Equal(t, 10.0, clamp(50, 1, 10))
	assert.Equal(t, 5.0, clamp(5, 1, 10))
}
