package marketdata

import (
	"fmt"
	"sync"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

const (
	// volumeBaselineWindow is how many prior bars' volume feed the
	// rolling average VOLUME_ANOMALY compares against.
	volumeBaselineWindow = 20
	// priceJumpFraction is the close-to-close move (as a fraction of the
	// prior close) past which a bar is flagged PRICE_JUMP.
	priceJumpFraction = 0.15
	// volumeAnomalyMultiple is how far above its rolling baseline a
	// bar's volume must sit to be flagged VOLUME_ANOMALY.
	volumeAnomalyMultiple = 5.0
	// lagToleranceStrides is how many timeframe strides a bar's
	// close_time_ms may trail wall clock before it's flagged DATA_LAG.
	lagToleranceStrides = 2
)

// qualityIssue is one data-quality condition found on a bar, reported as
// an observability-only risk_event.
type qualityIssue struct {
	Type   string
	Detail string
}

// symbolQualityState is the rolling per-(symbol, timeframe) baseline the
// quality checks compare each new bar against.
type symbolQualityState struct {
	mu        sync.Mutex
	haveClose bool
	lastClose float64
	volumes   []float64
	volumeSum float64
}

func (st *symbolQualityState) volumeBaseline() (float64, bool) {
	if len(st.volumes) == 0 {
		return 0, false
	}
	return st.volumeSum / float64(len(st.volumes)), true
}

func (st *symbolQualityState) recordVolume(v float64) {
	st.volumes = append(st.volumes, v)
	st.volumeSum += v
	if len(st.volumes) > volumeBaselineWindow {
		st.volumeSum -= st.volumes[0]
		st.volumes = st.volumes[1:]
	}
}

// qualityTracker holds in-memory state for every (symbol, timeframe) the
// service ingests. A restart starts each pair with a clean baseline —
// the checks are observability signals, not a correctness gate, so
// losing a few bars of history on restart is acceptable.
type qualityTracker struct {
	mu    sync.Mutex
	state map[string]*symbolQualityState
}

func newQualityTracker() *qualityTracker {
	return &qualityTracker{state: make(map[string]*symbolQualityState)}
}

func (qt *qualityTracker) get(symbol, tf string) *symbolQualityState {
	key := symbol + "|" + tf
	qt.mu.Lock()
	defer qt.mu.Unlock()
	st, ok := qt.state[key]
	if !ok {
		st = &symbolQualityState{}
		qt.state[key] = st
	}
	return st
}

// checkBar runs every data-quality check against bar and returns the
// risk_event types it warrants. duplicate is the negation of the
// bar_close_emits insert result the caller already computed, so
// BAR_DUPLICATE detection needs no state of its own.
func (qt *qualityTracker) checkBar(bar store.Bar, nowMs int64, duplicate bool) []qualityIssue {
	var issues []qualityIssue

	if duplicate {
		issues = append(issues, qualityIssue{Type: events.RiskBarDuplicate, Detail: "close_time_ms already emitted"})
	}

	if strideMs, err := timeframe.MS(bar.Timeframe); err == nil {
		if lag := nowMs - bar.CloseTimeMs; lag > strideMs*lagToleranceStrides {
			issues = append(issues, qualityIssue{Type: events.RiskDataLag, Detail: fmt.Sprintf("lag_ms=%d", lag)})
		}
	}

	st := qt.get(bar.Symbol, bar.Timeframe)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.haveClose && st.lastClose != 0 {
		delta := (bar.Close - st.lastClose) / st.lastClose
		if delta < 0 {
			delta = -delta
		}
		if delta > priceJumpFraction {
			issues = append(issues, qualityIssue{Type: events.RiskPriceJump, Detail: fmt.Sprintf("delta_fraction=%.4f", delta)})
		}
	}

	if baseline, ok := st.volumeBaseline(); ok && baseline > 0 && bar.Volume > baseline*volumeAnomalyMultiple {
		issues = append(issues, qualityIssue{Type: events.RiskVolumeAnomaly, Detail: fmt.Sprintf("volume=%.4f baseline=%.4f", bar.Volume, baseline)})
	}

	st.lastClose = bar.Close
	st.haveClose = true
	st.recordVolume(bar.Volume)

	return issues
}
