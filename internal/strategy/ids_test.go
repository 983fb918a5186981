package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdempotencyKey_IsStableAndDistinguishesInputs(t *testing.T) {
	a := idempotencyKey("BTCUSDT", "1h", 1000, "LONG")
	b := idempotencyKey("BTCUSDT", "1h", 1000, "LONG")
	c := idempotencyKey("BTCUSDT", "1h", 1000, "SHORT")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // hex-encoded sha256
}

func TestPlanID_Is24HexChars(t *testing.T) {
	id := planID("BTCUSDT", "1h", 1000, "LONG")
	assert.Len(t, id, 24)
	assert.Equal(t, idempotencyKey("BTCUSDT", "1h", 1000, "LONG")[:24], id)
}

func TestSetupID_AndTriggerID_AreDistinctPrefixedSlices(t *testing.T) {
	key := idempotencyKey("BTCUSDT", "1h", 1000, "LONG")
	setup := setupID("BTCUSDT", "1h", 1000, "LONG")
	trigger := triggerID("BTCUSDT", "1h", 1000, "LONG")
	assert.Equal(t, "setup_"+key[:20], setup)
	assert.Equal(t, "trg_"+key[len(key)-20:], trigger)
	assert.NotEqual(t, setup, trigger)
}
