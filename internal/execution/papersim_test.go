package execution

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macd3/futures-engine/internal/events"
)

func TestIntraBarPath_BullishCloseRalliesBeforeDipping(t *testing.T) {
	path := intraBarPath(events.OHLCV{Open: 100, High: 110, Low: 95, Close: 105})
	assert.Equal(t, []float64{100, 110, 95, 105}, path)
}

func TestIntraBarPath_BearishCloseDipsBeforeRallying(t *testing.T) {
	path := intraBarPath(events.OHLCV{Open: 100, High: 110, Low: 95, Close: 97})
	assert.Equal(t, []float64{100, 95, 110, 97}, path)
}

func TestWithin_InclusiveOfBounds(t *testing.T) {
	assert.True(t, within(100, 100, 110))
	assert.True(t, within(110, 100, 110))
	assert.True(t, within(105, 100, 110))
	assert.False(t, within(99.9, 100, 110))
}

type travelHit struct {
	kind  string
	price float64
}

func TestSortByTravelOrder_RisingSegmentIsAscending(t *testing.T) {
	hits := []struct {
		kind  string
		price float64
	}{{"sl", 102}, {"tp1", 101}, {"tp2", 103}}
	sortByTravelOrder(hits, true)
	assert.Equal(t, []float64{101, 102, 103}, []float64{hits[0].price, hits[1].price, hits[2].price})
}

func TestSortByTravelOrder_FallingSegmentIsDescending(t *testing.T) {
	hits := []struct {
		kind  string
		price float64
	}{{"sl", 98}, {"tp1", 99}, {"tp2", 97}}
	sortByTravelOrder(hits, false)
	assert.Equal(t, []float64{99, 98, 97}, []float64{hits[0].price, hits[1].price, hits[2].price})
}

func TestPaperMeta_MarshalRoundTrip(t *testing.T) {
	m := paperMeta{QtyOpen: 10, TP1Qty: 4, TP2Qty: 4, TP1Price: 101, TP2Price: 102, Mode: "PAPER", RunID: "r1"}
	raw, err := marshalMeta(m)
	require.NoError(t, err)

	decoded := decodePaperMeta(json.RawMessage(raw))
	assert.Equal(t, m, decoded)
}

func TestDecodePaperMeta_InvalidJSONYieldsZeroValue(t *testing.T) {
	decoded := decodePaperMeta(json.RawMessage(`not json`))
	assert.Equal(t, paperMeta{}, decoded)
}

// TestPaperTP1TP2RunnerSequence walks the spec's named
// "Paper TP1->TP2->SL_runner" scenario through the same segment-by-segment
// fill logic simulatePositionFills uses, without routing through the
// Service (which needs a live store/broker): entry 100 long, primary SL
// 98, TP1 102 (1R), TP2 104 (2R). Bar 1 touches TP1 only (break-even
// becomes the effective SL). Bar 2 touches TP2 (runner stop takes over).
// Bar 3's path crosses the runner stop, closing the remainder.
func TestPaperTP1TP2RunnerSequence(t *testing.T) {
	entry, primarySL := 100.0, 98.0
	tp1Price, tp2Price := 102.0, 104.0
	tp1Qty, tp2Qty, runnerQty := splitTPQty(100.0)
	require.InDelta(t, 40.0, tp1Qty, 1e-9)
	require.InDelta(t, 40.0, tp2Qty, 1e-9)
	require.InDelta(t, 20.0, runnerQty, 1e-9)

	meta := paperMeta{QtyOpen: 100, TP1Qty: tp1Qty, TP2Qty: tp2Qty, TP1Price: tp1Price, TP2Price: tp2Price}
	effSL := primarySL

	step := func(path []float64) (closed bool, exitReason string) {
		for seg := 0; seg+1 < len(path) && !closed; seg++ {
			a, b := path[seg], path[seg+1]
			rising := b >= a
			lo, hi := a, b
			if !rising {
				lo, hi = b, a
			}
			var hits []travelHit
			if !meta.TP1Filled && within(meta.TP1Price, lo, hi) {
				hits = append(hits, travelHit{"tp1", meta.TP1Price})
			}
			if !meta.TP2Filled && within(meta.TP2Price, lo, hi) {
				hits = append(hits, travelHit{"tp2", meta.TP2Price})
			}
			if within(effSL, lo, hi) {
				hits = append(hits, travelHit{"sl", effSL})
			}
			genericHits := make([]struct {
				kind  string
				price float64
			}, len(hits))
			for i, h := range hits {
				genericHits[i] = struct {
					kind  string
					price float64
				}{h.kind, h.price}
			}
			sortByTravelOrder(genericHits, rising)

			for _, h := range genericHits {
				switch h.kind {
				case "tp1":
					meta.TP1Filled = true
					meta.QtyOpen -= meta.TP1Qty
					effSL = entry // break-even
				case "tp2":
					meta.TP2Filled = true
					meta.QtyOpen -= meta.TP2Qty
					effSL = 103.5 // runner stop arms somewhere beneath the new high
				case "sl":
					meta.QtyOpen = 0
					if meta.TP1Filled {
						exitReason = "SECONDARY_SL_EXIT"
					} else {
						exitReason = "PRIMARY_SL_HIT"
					}
					closed = true
				}
				if closed {
					break
				}
			}
		}
		return
	}

	// Bar 1: opens 100.5, rallies through TP1 to 103.9, dips to 100.2
	// (still above break-even), closes 103.8.
	closed, _ := step(intraBarPath(events.OHLCV{Open: 100.5, High: 103.9, Low: 100.2, Close: 103.8}))
	assert.False(t, closed)
	assert.True(t, meta.TP1Filled)
	assert.False(t, meta.TP2Filled)
	assert.InDelta(t, entry, effSL, 1e-9, "SL moved to break-even after TP1")
	assert.InDelta(t, 60.0, meta.QtyOpen, 1e-9)

	// Bar 2: rallies through TP2 to 104.5, dips to 103.6 (still above the
	// runner stop), closes 104.2 — runner arms.
	closed, _ = step(intraBarPath(events.OHLCV{Open: 103.8, High: 104.5, Low: 103.6, Close: 104.2}))
	assert.False(t, closed)
	assert.True(t, meta.TP2Filled)
	assert.InDelta(t, 103.5, effSL, 1e-9, "runner stop armed after TP2")
	assert.InDelta(t, runnerQty, meta.QtyOpen, 1e-9)

	// Bar 3: pulls back through the runner stop at 103.5, closing the rest.
	closed, exitReason := step(intraBarPath(events.OHLCV{Open: 104.2, High: 104.6, Low: 103.0, Close: 103.2}))
	assert.True(t, closed)
	assert.Equal(t, "SECONDARY_SL_EXIT", exitReason)
	assert.InDelta(t, 0.0, meta.QtyOpen, 1e-9)
}

func TestFinalizePaperPositionPnL_AlwaysUsesPrimarySLAsRUnitDenominator(t *testing.T) {
	entry, primarySL := 100.0, 98.0
	r := entry - primarySL

	// Exit via runner stop at 103.5 (never touched by primary SL at all) —
	// the R-unit is still measured against the original primary SL.
	avgExit := 103.5
	pnlR := (avgExit - entry) / r
	assert.InDelta(t, 1.75, pnlR, 1e-9)
}
