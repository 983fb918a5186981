package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderLinkID_SplitsOnLastColon(t *testing.T) {
	idem, purpose, ok := parseOrderLinkID("idem-1:tp2")
	assert.True(t, ok)
	assert.Equal(t, "idem-1", idem)
	assert.Equal(t, "tp2", purpose)
}

func TestParseOrderLinkID_RetrySuffixStillSplitsOnLastColon(t *testing.T) {
	idem, purpose, ok := parseOrderLinkID("order-7:retry2")
	assert.True(t, ok)
	assert.Equal(t, "order-7", idem)
	assert.Equal(t, "retry2", purpose)
}

func TestParseOrderLinkID_NoColonIsNotOK(t *testing.T) {
	_, _, ok := parseOrderLinkID("no-colon-here")
	assert.False(t, ok)
}

func TestParseFloatOr_FallsBackOnInvalidInput(t *testing.T) {
	assert.InDelta(t, 1.5, parseFloatOr("1.5", 0), 1e-9)
	assert.InDelta(t, 9.0, parseFloatOr("not-a-number", 9.0), 1e-9)
	assert.InDelta(t, 9.0, parseFloatOr("", 9.0), 1e-9)
}
