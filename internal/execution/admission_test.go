package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBias_MapsSideToDirection(t *testing.T) {
	assert.Equal(t, "LONG", bias("BUY"))
	assert.Equal(t, "SHORT", bias("SELL"))
}

func TestOpposite_FlipsSide(t *testing.T) {
	assert.Equal(t, "SELL", opposite("BUY"))
	assert.Equal(t, "BUY", opposite("SELL"))
}

func TestRunIDFromMeta_ExtractsStringOrEmpty(t *testing.T) {
	assert.Equal(t, "r1", runIDFromMeta(map[string]any{"run_id": "r1"}))
	assert.Equal(t, "", runIDFromMeta(map[string]any{}))
	assert.Equal(t, "", runIDFromMeta(nil))
	assert.Equal(t, "", runIDFromMeta(map[string]any{"run_id": 42}))
}

func TestService_LockTTL_DefaultsWhenUnset(t *testing.T) {
	s := &Service{cfg: Config{}}
	assert.Equal(t, 10*time.Second, s.lockTTL())

	s = &Service{cfg: Config{LockTTL: 30 * time.Second}}
	assert.Equal(t, 30*time.Second, s.lockTTL())
}
