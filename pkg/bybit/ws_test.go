package bybit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKlineEvent_Basic(t *testing.T) {
	msg := []byte(`{"topic":"kline.1.BTCUSDT","data":[{"start":1000,"end":60999,"interval":"1","open":"100.5","high":"101","low":"99.5","close":"100.8","volume":"12.3","turnover":"1234.5","confirm":true}]}`)
	ev, ok, err := parseKlineEvent(msg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", ev.Symbol)
	assert.Equal(t, "1", ev.Interval)
	assert.True(t, ev.Confirm)
	assert.InDelta(t, 100.8, ev.Close, 1e-9)
}

func TestParseKlineEvent_IgnoresOtherTopics(t *testing.T) {
	msg := []byte(`{"topic":"orderbook.1.BTCUSDT","data":[]}`)
	_, ok, err := parseKlineEvent(msg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseKlineEvent_EmptyDataIgnored(t *testing.T) {
	msg := []byte(`{"topic":"kline.1.BTCUSDT","data":[]}`)
	_, ok, err := parseKlineEvent(msg)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKlineTopic_Format(t *testing.T) {
	assert.Equal(t, "kline.1.BTCUSDT", klineTopic("1", "BTCUSDT"))
}
