package broker

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage_CanonicalJSONField(t *testing.T) {
	m := redis.XMessage{
		ID:     "1-0",
		Values: map[string]any{"json": `{"a":1}`, "type": "signal"},
	}
	msg, err := decodeMessage("signal", m)
	require.NoError(t, err)
	assert.Equal(t, "signal", msg.EventType)
	assert.JSONEq(t, `{"a":1}`, string(msg.Raw))
}

func TestDecodeMessage_LegacyDataField(t *testing.T) {
	m := redis.XMessage{
		ID:     "1-0",
		Values: map[string]any{"data": `{"a":2}`},
	}
	msg, err := decodeMessage("bar_close", m)
	require.NoError(t, err)
	assert.Equal(t, "", msg.EventType)
	assert.JSONEq(t, `{"a":2}`, string(msg.Raw))
}

func TestDecodeMessage_MissingField(t *testing.T) {
	m := redis.XMessage{ID: "1-0", Values: map[string]any{"other": "x"}}
	_, err := decodeMessage("bar_close", m)
	assert.Error(t, err)
}

func TestRandomToken_Unique(t *testing.T) {
	a, err := randomToken()
	require.NoError(t, err)
	b, err := randomToken()
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestStreamKey_Prefixed(t *testing.T) {
	assert.Equal(t, "stream:bar_close", streamKey("bar_close"))
}
