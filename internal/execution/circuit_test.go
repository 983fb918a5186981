package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalDrawdown_BelowBothThresholdsHaltsNeither(t *testing.T) {
	d := evalDrawdown(10000, 9900, 2, 4)
	assert.False(t, d.SoftHalt)
	assert.False(t, d.HardHalt)
	assert.InDelta(t, 1.0, d.DrawdownPct, 1e-9)
}

func TestEvalDrawdown_CrossingSoftOnlySetsSoftHalt(t *testing.T) {
	d := evalDrawdown(10000, 9700, 2, 4)
	assert.True(t, d.SoftHalt)
	assert.False(t, d.HardHalt)
}

func TestEvalDrawdown_CrossingHardSetsBoth(t *testing.T) {
	d := evalDrawdown(10000, 9500, 2, 4)
	assert.True(t, d.SoftHalt)
	assert.True(t, d.HardHalt)
}

func TestEvalDrawdown_ZeroStartingEquityIsZeroDrawdown(t *testing.T) {
	d := evalDrawdown(0, 0, 2, 4)
	assert.Equal(t, 0.0, d.DrawdownPct)
}
