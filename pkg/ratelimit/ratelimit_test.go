package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimiter() *Limiter {
	return New(map[Group]GroupConfig{
		GroupPublic:              {RPS: 100, Burst: 10},
		GroupPrivateCritical:     {RPS: 100, Burst: 10},
		GroupPrivateOrderQuery:   {RPS: 100, Burst: 10},
		GroupPrivateAccountQuery: {RPS: 100, Burst: 10},
	}, 100, 10, 2*time.Second)
}

func TestAllow_UnknownGroup(t *testing.T) {
	l := testLimiter()
	err := l.Allow(context.Background(), Group("bogus"), "")
	assert.Error(t, err)
}

func TestAllow_GrantsWithinBurst(t *testing.T) {
	l := testLimiter()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Allow(context.Background(), GroupPublic, "BTCUSDT"))
	}
}

func TestApplyHeaders_RetryAfterSetsCooldown(t *testing.T) {
	l := testLimiter()
	l.ApplyHeaders(GroupPublic, "429", "", "", "", "5")
	gb := l.groups[GroupPublic]
	gb.mu.Lock()
	until := gb.cooldownUntil
	gb.mu.Unlock()
	assert.True(t, until.After(time.Now()))
}

func TestAllow_CooldownExceedsMaxWaitReturnsError(t *testing.T) {
	l := testLimiter()
	l.ApplyHeaders(GroupPublic, "429", "", "", "", "10") // 10s cooldown > 2s maxWait
	err := l.Allow(context.Background(), GroupPublic, "")
	assert.ErrorIs(t, err, ErrCooldown)
}

func TestApplyHeaders_LowRatioThrottlesNonCriticalGroup(t *testing.T) {
	l := testLimiter()
	before := l.groups[GroupPrivateOrderQuery].limiter.Limit()
	l.ApplyHeaders(GroupPrivateOrderQuery, "200", "1", "100", "", "")
	after := l.groups[GroupPrivateOrderQuery].limiter.Limit()
	assert.Less(t, float64(after), float64(before))
}

func TestApplyHeaders_CriticalGroupNeverThrottled(t *testing.T) {
	l := testLimiter()
	before := l.groups[GroupPrivateCritical].limiter.Limit()
	l.ApplyHeaders(GroupPrivateCritical, "200", "1", "100", "", "")
	after := l.groups[GroupPrivateCritical].limiter.Limit()
	assert.Equal(t, before, after)
}
