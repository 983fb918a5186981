package execution

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// paperID builds a deterministic internal order/position id for
// paper/backtest mode, where there is no exchange-assigned id to key on.
func paperID(prefix, idempotencyKey string) string {
	sum := sha256.Sum256([]byte(idempotencyKey))
	return fmt.Sprintf("paper-%s-%s", prefix, hex.EncodeToString(sum[:])[:12])
}

// orderLinkID is the client order id bybit echoes back, used to match
// exchange fills to our local order rows.
func orderLinkID(idempotencyKey, purpose string) string {
	return idempotencyKey + ":" + purpose
}
