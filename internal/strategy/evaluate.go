// Package strategy consumes bar_close events and decides whether a
// three-segment MACD divergence setup, filtered by the Vegas trend gate
// and a confirmation-hit threshold, is worth emitting as a signal (and,
// on an auto-trading timeframe, a trade_plan). The detection math is
// delegated to internal/indicators; the consumer loop is built on
// pkg/broker's ReadGroup/Ack contract.
package strategy

import (
	"github.com/macd3/futures-engine/internal/indicators"
	"github.com/macd3/futures-engine/internal/store"
)

// minBars is the early-return floor before building candles for a short
// history; DetectThreeSegmentDivergence enforces the same floor, so this
// is just a fast path.
const minBars = 120

// defaultRSIPeriod is the RSI divergence confirmation's default window.
const defaultRSIPeriod = 14

// Confirmation hit labels, kept stable so a signal's persisted payload
// is self-describing.
const (
	HitEngulfing    = "ENGULFING"
	HitRSIDiv       = "RSI_DIV"
	HitOBVDiv       = "OBV_DIV"
	HitFVGProximity = "FVG_PROXIMITY"
)

// Decision is what one bar_close evaluation produced: a signal always,
// and (when isAutoTimeframe holds for its timeframe) an entry plan.
type Decision struct {
	Symbol      string
	Timeframe   string
	CloseTimeMs int64

	Bias       indicators.Bias
	VegasState string
	Hits       []string

	SetupID        string
	TriggerID      string
	IdempotencyKey string

	EntryPrice     float64
	PrimarySLPrice float64

	QualityScore float64
}

// Evaluate runs the full detection pipeline against ascending-by-close
// bars for one (symbol, timeframe). ok is false whenever any gate
// (history length, divergence structure, Vegas filter, confirmation
// count) fails to clear, meaning nothing should be emitted.
func Evaluate(symbol, timeframe string, bars []store.Bar, minConfirmations int) (Decision, bool) {
	if len(bars) < minBars {
		return Decision{}, false
	}

	candles := make([]indicators.Candle, len(bars))
	close := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	for i, b := range bars {
		candles[i] = indicators.Candle{Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		close[i], high[i], low[i] = b.Close, b.High, b.Low
	}

	setup, ok := indicators.DetectThreeSegmentDivergence(close, high, low)
	if !ok {
		return Decision{}, false
	}

	vs := indicators.VegasState(close, indicators.DefaultVegasFast, indicators.DefaultVegasSlow)
	if setup.Direction == indicators.BiasLong && vs != "Bullish" {
		return Decision{}, false
	}
	if setup.Direction == indicators.BiasShort && vs != "Bearish" {
		return Decision{}, false
	}

	var hits []string
	if len(candles) >= 2 && indicators.Engulfing(candles[len(candles)-2:], setup.Direction) {
		hits = append(hits, HitEngulfing)
	}
	if indicators.RSIDivergence(candles, setup.Direction, defaultRSIPeriod) {
		hits = append(hits, HitRSIDiv)
	}
	if indicators.OBVDivergence(candles, setup.Direction) {
		hits = append(hits, HitOBVDiv)
	}
	if indicators.FVGProximity(candles, setup.Direction) {
		hits = append(hits, HitFVGProximity)
	}
	if len(hits) < minConfirmations {
		return Decision{}, false
	}

	closeTimeMs := bars[len(bars)-1].CloseTimeMs
	bias := string(setup.Direction)

	divScore := indicators.DivergenceStrength(indicators.DivergenceFeatures{
		Hist2: setup.H2, Hist3: setup.H3,
		Price2: setup.P2.Price, Price3: setup.P3.Price,
		I1: setup.P1.Index, I2: setup.P2.Index, I3: setup.P3.Index,
	})
	confScore := indicators.ConfluenceStrength(len(hits), minConfirmations)

	return Decision{
		Symbol: symbol, Timeframe: timeframe, CloseTimeMs: closeTimeMs,
		Bias: setup.Direction, VegasState: vs, Hits: hits,
		SetupID:        setupID(symbol, timeframe, closeTimeMs, bias),
		TriggerID:      triggerID(symbol, timeframe, closeTimeMs, bias),
		IdempotencyKey: idempotencyKey(symbol, timeframe, closeTimeMs, bias),
		EntryPrice:     close[len(close)-1],
		PrimarySLPrice: setup.P3.Price,
		QualityScore:   indicators.SignalQualityScore(divScore, confScore),
	}, true
}
