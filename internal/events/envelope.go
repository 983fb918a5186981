// Package events defines the stream envelope and typed payloads shared
// by every service, plus the codec that (de)serializes them onto the
// broker. Each payload variant is a concrete, validator-tagged Go
// struct rather than a loosely schema-checked JSON blob, and the
// envelope is generic over whichever payload it wraps.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Stream names for the broker's Redis Streams.
const (
	StreamBarClose        = "bar_close"
	StreamSignal          = "signal"
	StreamTradePlan       = "trade_plan"
	StreamExecutionReport = "execution_report"
	StreamRiskEvent       = "risk_event"
	StreamDLQ             = "dlq"
)

// Envelope wraps every message published to the broker. Payload is
// left as json.RawMessage here (the wire shape); typed accessors
// decode it per stream.
type Envelope struct {
	EventID       string          `json:"event_id" validate:"required,uuid"`
	TsMs          int64           `json:"ts_ms" validate:"required"`
	Env           string          `json:"env"`
	Service       string          `json:"service" validate:"required"`
	TraceID       string          `json:"trace_id" validate:"required"`
	SchemaVersion int             `json:"schema_version" validate:"required"`
	Meta          map[string]any  `json:"meta,omitempty"`
	Payload       json.RawMessage `json:"payload" validate:"required"`
	Ext           map[string]any  `json:"ext,omitempty"`
}

// NewEnvelope builds an envelope around a typed, validated payload.
func NewEnvelope(service, traceID string, payload any) (Envelope, error) {
	if err := validate.Struct(payload); err != nil {
		return Envelope{}, fmt.Errorf("events: invalid payload: %w", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal payload: %w", err)
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		TsMs:          nowMs(),
		Env:           "prod",
		Service:       service,
		TraceID:       traceID,
		SchemaVersion: 1,
		Payload:       raw,
	}
	if err := validate.Struct(env); err != nil {
		return Envelope{}, fmt.Errorf("events: invalid envelope: %w", err)
	}
	return env, nil
}

// DecodePayload unmarshals and validates the envelope's payload into
// dst (a pointer to one of the Payload types below).
func (e Envelope) DecodePayload(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("events: decode payload: %w", err)
	}
	return validate.Struct(dst)
}

var nowMsFn = defaultNowMs

func nowMs() int64 { return nowMsFn() }
