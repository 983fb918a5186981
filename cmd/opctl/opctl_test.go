package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macd3/futures-engine/internal/store"
)

func floatPtr(f float64) *float64 { return &f }
func int64Ptr(i int64) *int64     { return &i }

func TestCheckPositionInvariants_QtyOpenExceedsQtyTotal(t *testing.T) {
	p := store.Position{
		IdempotencyKey: "p1",
		Status:         "OPEN",
		QtyTotal:       1.0,
		Meta:           json.RawMessage(`{"qty_open": 1.5}`),
	}
	violations := checkPositionInvariants(p)
	assert.Len(t, violations, 1)
	assert.Contains(t, violations[0], "qty_open")
}

func TestCheckPositionInvariants_RunnerStopViolatesLongDirection(t *testing.T) {
	p := store.Position{
		IdempotencyKey:  "p2",
		Status:          "OPEN",
		Side:            "LONG",
		QtyTotal:        1.0,
		PrimarySLPrice:  100,
		RunnerStopPrice: floatPtr(90),
		Meta:            json.RawMessage(`{}`),
	}
	violations := checkPositionInvariants(p)
	assert.Len(t, violations, 1)
	assert.Contains(t, violations[0], "runner_stop_price")
}

func TestCheckPositionInvariants_RunnerStopViolatesShortDirection(t *testing.T) {
	p := store.Position{
		IdempotencyKey:  "p3",
		Status:          "OPEN",
		Side:            "SHORT",
		QtyTotal:        1.0,
		PrimarySLPrice:  100,
		RunnerStopPrice: floatPtr(110),
		Meta:            json.RawMessage(`{}`),
	}
	violations := checkPositionInvariants(p)
	assert.Len(t, violations, 1)
}

func TestCheckPositionInvariants_ValidRunnerStopPasses(t *testing.T) {
	p := store.Position{
		IdempotencyKey:  "p4",
		Status:          "OPEN",
		Side:            "LONG",
		QtyTotal:        1.0,
		PrimarySLPrice:  100,
		RunnerStopPrice: floatPtr(105),
		Meta:            json.RawMessage(`{"qty_open": 1.0}`),
	}
	assert.Empty(t, checkPositionInvariants(p))
}

func TestCheckPositionInvariants_ClosedBeforeOpened(t *testing.T) {
	p := store.Position{
		IdempotencyKey: "p5",
		Status:         "CLOSED",
		QtyTotal:       1.0,
		OpenedAtMs:     1000,
		ClosedAtMs:     int64Ptr(500),
		Meta:           json.RawMessage(`{}`),
	}
	violations := checkPositionInvariants(p)
	assert.Len(t, violations, 1)
	assert.Contains(t, violations[0], "closed_at_ms")
}

func TestMetaFloat_MissingKeyReturnsFalse(t *testing.T) {
	_, ok := metaFloat(json.RawMessage(`{}`), "qty_open")
	assert.False(t, ok)
}

func TestMetaFloat_EmptyRawReturnsFalse(t *testing.T) {
	_, ok := metaFloat(nil, "qty_open")
	assert.False(t, ok)
}

func TestMetaFloat_ExtractsValue(t *testing.T) {
	v, ok := metaFloat(json.RawMessage(`{"qty_open": 0.4}`), "qty_open")
	assert.True(t, ok)
	assert.Equal(t, 0.4, v)
}
