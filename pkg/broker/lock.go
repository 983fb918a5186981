package broker

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// unlockScript only deletes the key if it still holds our token — a
// compare-and-delete to avoid releasing a lock some other holder has
// since reacquired after our TTL expired.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end
`

// PlanLock is a held trade_plan idempotency lock (lock:plan:{idem}).
type PlanLock struct {
	key   string
	token string
	ttl   time.Duration
}

// AcquirePlanLock attempts SET NX PX on lock:plan:{idempotencyKey}. Returns
// (nil, false, nil) when the lock is already held by someone else.
func (c *Client) AcquirePlanLock(ctx context.Context, idempotencyKey string, ttl time.Duration) (*PlanLock, bool, error) {
	key := "lock:plan:" + idempotencyKey
	token, err := randomToken()
	if err != nil {
		return nil, false, fmt.Errorf("broker: generate lock token: %w", err)
	}
	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("broker: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &PlanLock{key: key, token: token, ttl: ttl}, true, nil
}

// Release is best-effort: a failure here does not block the caller's
// main flow.
func (c *Client) Release(ctx context.Context, lock *PlanLock) {
	if lock == nil {
		return
	}
	c.rdb.Eval(ctx, unlockScript, []string{lock.key}, lock.token)
}

func randomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
