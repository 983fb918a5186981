// Package timeframe holds timeframe stride/rank/exchange-interval
// helpers shared across the system.
package timeframe

import "fmt"

// msByTimeframe maps the system's internal timeframe identifiers to
// their fixed millisecond stride.
var msByTimeframe = map[string]int64{
	"1m":  60_000,
	"5m":  5 * 60_000,
	"15m": 15 * 60_000,
	"30m": 30 * 60_000,
	"1h":  60 * 60_000,
	"4h":  4 * 60 * 60_000,
	"8h":  8 * 60 * 60_000,
	"1d":  24 * 60 * 60_000,
}

// rank orders timeframes for mutex-upgrade priority: 15m<30m<1h<4h<8h<1d.
var rank = map[string]int{
	"15m": 0,
	"30m": 1,
	"1h":  2,
	"4h":  3,
	"8h":  4,
	"1d":  5,
}

// bybitInterval maps a system timeframe to its native Bybit V5 kline
// interval. 8h has no native Bybit interval — it is always derived
// from eight 1h bars (see internal/marketdata derive8h.go) — so it is
// intentionally absent here.
var bybitInterval = map[string]string{
	"1m":  "1",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"4h":  "240",
	"1d":  "D",
}

// MS returns the fixed millisecond stride of a timeframe.
func MS(tf string) (int64, error) {
	ms, ok := msByTimeframe[tf]
	if !ok {
		return 0, fmt.Errorf("timeframe: unsupported %q", tf)
	}
	return ms, nil
}

// MustMS panics on an unknown timeframe; used only where the
// timeframe was already validated by Rank/BybitInterval.
func MustMS(tf string) int64 {
	ms, err := MS(tf)
	if err != nil {
		panic(err)
	}
	return ms
}

// Rank returns the mutex-upgrade priority of a timeframe; higher wins.
func Rank(tf string) (int, bool) {
	r, ok := rank[tf]
	return r, ok
}

// Higher reports whether a outranks b for mutex-upgrade purposes.
func Higher(a, b string) bool {
	ra, oka := Rank(a)
	rb, okb := Rank(b)
	if !oka || !okb {
		return false
	}
	return ra > rb
}

// BybitInterval returns the native Bybit kline interval for tf, or
// ("", false) when tf must be derived client-side (only "8h" today).
func BybitInterval(tf string) (string, bool) {
	v, ok := bybitInterval[tf]
	return v, ok
}

// IsNative reports whether tf can be subscribed/fetched directly from
// the exchange (as opposed to derived, like 8h).
func IsNative(tf string) bool {
	_, ok := bybitInterval[tf]
	return ok
}

// WindowStart8h returns the start of the 8h derivation window
// containing ts (floor(ts/8h)*8h).
func WindowStart8h(ts int64) int64 {
	const eightH = 8 * 60 * 60 * 1000
	return (ts / eightH) * eightH
}
