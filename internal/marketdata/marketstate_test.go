package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarketState_NoReconnectsIsLive(t *testing.T) {
	m := newMarketState()
	assert.Equal(t, StateLive, m.Get("BTCUSDT"))
}

func TestMarketState_FewReconnectsIsReconnecting(t *testing.T) {
	m := newMarketState()
	m.OnReconnect("BTCUSDT")
	assert.Equal(t, StateReconnect, m.Get("BTCUSDT"))
	m.OnReconnect("BTCUSDT")
	assert.Equal(t, StateReconnect, m.Get("BTCUSDT"))
}

func TestMarketState_ManyReconnectsIsDegraded(t *testing.T) {
	m := newMarketState()
	for i := 0; i < degradedAfterReconnectAttempts; i++ {
		m.OnReconnect("BTCUSDT")
	}
	assert.Equal(t, StateDegraded, m.Get("BTCUSDT"))
}

func TestMarketState_OnConnectedRecoversToLive(t *testing.T) {
	m := newMarketState()
	for i := 0; i < degradedAfterReconnectAttempts; i++ {
		m.OnReconnect("BTCUSDT")
	}
	require := assert.New(t)
	require.Equal(StateDegraded, m.Get("BTCUSDT"))
	m.OnConnected("BTCUSDT")
	require.Equal(StateLive, m.Get("BTCUSDT"))
}

func TestMarketState_SymbolsAreIndependent(t *testing.T) {
	m := newMarketState()
	m.OnReconnect("BTCUSDT")
	assert.Equal(t, StateLive, m.Get("ETHUSDT"))
}
