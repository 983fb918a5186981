package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxF_MinF(t *testing.T) {
	assert.Equal(t, 5.0, maxF(5, 3))
	assert.Equal(t, 5.0, maxF(3, 5))
	assert.Equal(t, 3.0, minF(5, 3))
	assert.Equal(t, 3.0, minF(3, 5))
}

// The TestRunnerTrailClamp_* tests mirror updateRunnerTrailingStop's
// monotonic clamp without needing a live Service: a LONG runner stop can
// only move up, a SHORT runner stop can only move down, regardless of
// what the freshly computed candidate stop says.
func TestRunnerTrailClamp_LongNeverLoosens(t *testing.T) {
	old := 99.0
	// candidate stop below the current one must not loosen it
	assert.InDelta(t, old, maxF(old, 97.0), 1e-9)
	// candidate stop above the current one tightens it
	assert.InDelta(t, 100.0, maxF(old, 100.0), 1e-9)
}

func TestRunnerTrailClamp_ShortNeverLoosens(t *testing.T) {
	old := 101.0
	// candidate stop above the current one must not loosen it
	assert.InDelta(t, old, minF(old, 103.0), 1e-9)
	// candidate stop below the current one tightens it
	assert.InDelta(t, 100.0, minF(old, 100.0), 1e-9)
}
