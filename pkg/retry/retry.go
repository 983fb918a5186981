// Package retry implements a retry/backoff helper: a single library
// function parameterized by policy, instead of scattering sleep(...)
// across call sites.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy parameterizes a retry loop.
type Policy struct {
	MaxAttempts      int
	BaseDelay        time.Duration
	Cap              time.Duration
	ClassifyRetryable func(error) bool
	ExtractRetryAfter func(error) (time.Duration, bool)
}

// DefaultPolicy allows up to 3 attempts with exponential backoff. It sets
// no ExtractRetryAfter, so a Retry-After carried by the error is ignored
// unless the caller supplies one.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		BaseDelay:         200 * time.Millisecond,
		Cap:               10 * time.Second,
		ClassifyRetryable: func(error) bool { return true },
	}
}

// ErrExhausted is returned (wrapped) when all attempts are spent.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Do runs fn up to MaxAttempts times, sleeping between attempts per
// exponential backoff (with full jitter) unless the error carries an
// explicit Retry-After, in which case that takes precedence.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.ClassifyRetryable != nil && !p.ClassifyRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := backoff(p.BaseDelay, p.Cap, attempt)
		if p.ExtractRetryAfter != nil {
			if d, ok := p.ExtractRetryAfter(err); ok && d > 0 {
				delay = d
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return errors.Join(ErrExhausted, lastErr)
}

func backoff(base, cap time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if cap > 0 && d > cap {
		d = cap
	}
	// full jitter
	return time.Duration(rand.Int63n(int64(d) + 1))
}

// NotifierBackoff is 2^(attempts-1) seconds, capped at 300.
func NotifierBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	secs := math.Pow(2, float64(attempts-1))
	if secs > 300 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

// WSReconnectBackoff is the marketdata/private-WS reconnect policy:
// exponential, capped at 60s, +0-30% jitter.
func WSReconnectBackoff(attempt int) time.Duration {
	base := time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	jitter := time.Duration(rand.Float64() * 0.3 * float64(d))
	return d + jitter
}
