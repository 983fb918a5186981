package bybit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_Deterministic(t *testing.T) {
	c := NewClient(Config{APIKey: "key", APISecret: "secret", RecvWindow: 5000}, nil)
	sig1 := c.sign("1000", "symbol=BTCUSDT")
	sig2 := c.sign("1000", "symbol=BTCUSDT")
	assert.Equal(t, sig1, sig2)
	assert.NotEmpty(t, sig1)
}

func TestSign_ChangesWithPayload(t *testing.T) {
	c := NewClient(Config{APIKey: "key", APISecret: "secret", RecvWindow: 5000}, nil)
	sig1 := c.sign("1000", "symbol=BTCUSDT")
	sig2 := c.sign("1000", "symbol=ETHUSDT")
	assert.NotEqual(t, sig1, sig2)
}

func TestToQuery_SortedAndEncoded(t *testing.T) {
	q := toQuery(map[string]any{"symbol": "BTCUSDT", "category": "linear"})
	assert.Equal(t, "category=linear&symbol=BTCUSDT", q)
}

func TestError_Retryable(t *testing.T) {
	e := &Error{RetCode: 10006}
	assert.True(t, e.Retryable())
	assert.True(t, e.RateLimited())

	e2 := &Error{RetCode: 10018}
	assert.True(t, e2.Retryable())
	assert.False(t, e2.RateLimited())

	e3 := &Error{RetCode: 10001}
	assert.False(t, e3.Retryable())
}
