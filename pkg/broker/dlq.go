package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// dlqEnvelope is the wire shape written to the dlq stream:
// event_id/ts_ms/payload{source_stream,message_id,reason,raw_fields}.
type dlqEnvelope struct {
	EventID string         `json:"event_id"`
	TsMs    int64          `json:"ts_ms"`
	Payload dlqPayload     `json:"payload"`
}

type dlqPayload struct {
	SourceStream string         `json:"source_stream"`
	MessageID    string         `json:"message_id"`
	Reason       string         `json:"reason"`
	RawFields    map[string]any `json:"raw_fields,omitempty"`
}

// PublishDLQ records a message that could not be processed (failed schema
// validation, unknown event type, handler error after retry exhaustion)
// onto the dlq stream for later operator inspection.
func (c *Client) PublishDLQ(ctx context.Context, nowMs int64, sourceStream, messageID, reason string, rawFields map[string]any) (string, error) {
	evt := dlqEnvelope{
		EventID: uuid.NewString(),
		TsMs:    nowMs,
		Payload: dlqPayload{
			SourceStream: sourceStream,
			MessageID:    messageID,
			Reason:       reason,
			RawFields:    rawFields,
		},
	}
	raw, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("broker: marshal dlq event: %w", err)
	}
	return c.Publish(ctx, "dlq", raw, "dlq")
}

// ReadDLQ returns the most recent count DLQ entries, newest first, for the
// read-only operator query endpoint.
func (c *Client) ReadDLQ(ctx context.Context, count int64) ([]Message, error) {
	res, err := c.rdb.XRevRangeN(ctx, streamKey("dlq"), "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("broker: xrevrange dlq: %w", err)
	}
	out := make([]Message, 0, len(res))
	for _, m := range res {
		msg, decodeErr := decodeMessage("dlq", m)
		if decodeErr != nil {
			continue
		}
		msg.ID = m.ID
		out = append(out, msg)
	}
	return out, nil
}
