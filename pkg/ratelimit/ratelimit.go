// Package ratelimit maintains a per-endpoint-group plus per-symbol
// token-bucket set, backed by golang.org/x/time/rate and sony/gobreaker
// circuit breakers per bucket.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Group names one of the four endpoint-group buckets this limiter tracks.
type Group string

const (
	GroupPublic               Group = "public"
	GroupPrivateCritical      Group = "private_critical"
	GroupPrivateOrderQuery    Group = "private_order_query"
	GroupPrivateAccountQuery  Group = "private_account_query"
)

// bucket pairs a token-bucket limiter with its circuit breaker so repeated
// 429/10006 responses trip the breaker independently per group.
type bucket struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	mu      sync.Mutex
	// cooldownUntil holds an adaptive pause derived from response headers
	// (X-Bapi-Limit-Reset-Timestamp / Retry-After); requests block until it
	// elapses even if the token bucket itself has capacity.
	cooldownUntil time.Time
}

// Limiter holds one bucket per endpoint group plus a map of per-symbol
// buckets created lazily on first use.
type Limiter struct {
	groups  map[Group]*bucket
	symbols sync.Map // symbol -> *bucket
	perSym  rate.Limit
	perSymBurst int
	maxWait time.Duration
}

// GroupConfig configures one endpoint-group bucket.
type GroupConfig struct {
	RPS   float64
	Burst int
}

// New builds a Limiter from per-group configs plus the shared per-symbol
// rate and the configured max-wait ceiling.
func New(cfg map[Group]GroupConfig, perSymbolRPS float64, perSymbolBurst int, maxWait time.Duration) *Limiter {
	l := &Limiter{
		groups:      make(map[Group]*bucket, len(cfg)),
		perSym:      rate.Limit(perSymbolRPS),
		perSymBurst: perSymbolBurst,
		maxWait:     maxWait,
	}
	for g, c := range cfg {
		l.groups[g] = newBucket(string(g), c.RPS, c.Burst)
	}
	return l
}

func newBucket(name string, rps float64, burst int) *bucket {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &bucket{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

func (b *bucket) symbolBucket(l *Limiter, symbol string) *bucket {
	if v, ok := l.symbols.Load(symbol); ok {
		return v.(*bucket)
	}
	nb := newBucket("symbol:"+symbol, float64(l.perSym), l.perSymBurst)
	actual, _ := l.symbols.LoadOrStore(symbol, nb)
	return actual.(*bucket)
}

// ErrCooldown is returned when a bucket is in an adaptive cooldown window
// longer than the caller's configured max wait.
var ErrCooldown = fmt.Errorf("ratelimit: cooldown exceeds max wait")

// Allow blocks (respecting ctx) until both the group bucket and the
// per-symbol bucket (if symbol != "") grant a token, the breaker for the
// group is closed/half-open, and any adaptive cooldown has elapsed — or
// returns an error if ctx is cancelled or the wait would exceed maxWait.
func (l *Limiter) Allow(ctx context.Context, group Group, symbol string) error {
	gb, ok := l.groups[group]
	if !ok {
		return fmt.Errorf("ratelimit: unknown group %q", group)
	}
	if err := l.waitBucket(ctx, gb); err != nil {
		return err
	}
	if symbol != "" {
		sb := gb.symbolBucket(l, symbol)
		if err := l.waitBucket(ctx, sb); err != nil {
			return err
		}
	}
	return nil
}

func (l *Limiter) waitBucket(ctx context.Context, b *bucket) error {
	b.mu.Lock()
	wait := time.Until(b.cooldownUntil)
	b.mu.Unlock()
	if wait > 0 {
		if l.maxWait > 0 && wait > l.maxWait {
			return ErrCooldown
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.limiter.Wait(ctx)
	})
	return err
}

// RecordFailure trips the breaker's failure counter for the group/symbol
// bucket(s) touched by a retryable error (HTTP 408/429/5xx, retCode
// 10006/10018).
func (l *Limiter) RecordFailure(group Group, symbol string) {
	if gb, ok := l.groups[group]; ok {
		gb.breaker.Execute(func() (any, error) { return nil, fmt.Errorf("ratelimit: recorded failure") })
	}
	if symbol != "" {
		if gb, ok := l.groups[group]; ok {
			sb := gb.symbolBucket(l, symbol)
			sb.breaker.Execute(func() (any, error) { return nil, fmt.Errorf("ratelimit: recorded failure") })
		}
	}
}

// ApplyHeaders adjusts the group bucket's adaptive cooldown from Bybit's
// rate-limit response headers (X-Bapi-Limit-Reset-Timestamp / Retry-After),
// and reduces the effective rate when remaining/limit is low — critical
// endpoints are left alone, queries throttled harder.
func (l *Limiter) ApplyHeaders(group Group, status, remaining, limit, resetTimestampMs, retryAfterSec string) {
	gb, ok := l.groups[group]
	if !ok {
		return
	}
	gb.mu.Lock()
	defer gb.mu.Unlock()

	if retryAfterSec != "" {
		if secs, err := strconv.Atoi(retryAfterSec); err == nil {
			until := time.Now().Add(time.Duration(secs) * time.Second)
			if until.After(gb.cooldownUntil) {
				gb.cooldownUntil = until
			}
		}
	}
	if resetTimestampMs != "" {
		if ms, err := strconv.ParseInt(resetTimestampMs, 10, 64); err == nil {
			until := time.UnixMilli(ms)
			if status == "429" && until.After(gb.cooldownUntil) {
				gb.cooldownUntil = until
			}
		}
	}

	rem, errR := strconv.ParseFloat(remaining, 64)
	lim, errL := strconv.ParseFloat(limit, 64)
	if errR == nil && errL == nil && lim > 0 {
		ratio := rem / lim
		if group != GroupPrivateCritical && ratio < 0.2 {
			// throttle harder when running low: halve the effective rate
			// rather than block outright.
			cur := gb.limiter.Limit()
			gb.limiter.SetLimit(cur / 2)
		}
	}
}
