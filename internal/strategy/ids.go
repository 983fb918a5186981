package strategy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// idempotencyKey is a reproducible sha256 over (symbol, timeframe,
// close_time_ms, bias) so a replayed bar_close never produces a second
// signal or trade_plan row.
func idempotencyKey(symbol, timeframe string, closeTimeMs int64, bias string) string {
	raw := fmt.Sprintf("%s|%s|%d|%s", symbol, timeframe, closeTimeMs, bias)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// planID reuses the idempotency key's first 24 hex characters.
func planID(symbol, timeframe string, closeTimeMs int64, bias string) string {
	return idempotencyKey(symbol, timeframe, closeTimeMs, bias)[:24]
}

// setupID prefixes the first 20 hex characters with "setup_".
func setupID(symbol, timeframe string, closeTimeMs int64, bias string) string {
	return "setup_" + idempotencyKey(symbol, timeframe, closeTimeMs, bias)[:20]
}

// triggerID prefixes the last 20 hex characters with "trg_".
func triggerID(symbol, timeframe string, closeTimeMs int64, bias string) string {
	key := idempotencyKey(symbol, timeframe, closeTimeMs, bias)
	return "trg_" + key[len(key)-20:]
}
