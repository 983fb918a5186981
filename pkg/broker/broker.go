// Package broker wraps Redis Streams as the append-only event bus every
// service talks through: publish/read/ack/ensure_group/pending_count/
// group_lag map onto go-redis/v9's XAdd/XReadGroup/XAck/XGroupCreateMkStream/
// XPending/XInfoGroups one-for-one.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream key prefix matches the Python client's "stream:" convention.
func streamKey(name string) string { return "stream:" + name }

// Message is one delivery off a consumer group read.
type Message struct {
	Stream    string
	ID        string
	EventType string
	Raw       json.RawMessage
}

// Client wraps a redis.Client with the publish/consume/ack/admin surface
// every service needs.
type Client struct {
	rdb *redis.Client
}

// New wraps an already-constructed redis.Client.
func New(rdb *redis.Client) *Client { return &Client{rdb: rdb} }

// Publish writes env (already-marshaled envelope JSON) to stream under the
// canonical "json" field, with "type" set to eventType for operational
// filtering.
func (c *Client) Publish(ctx context.Context, stream string, env json.RawMessage, eventType string) (string, error) {
	values := map[string]any{"json": string(env)}
	if eventType != "" {
		values["type"] = eventType
	}
	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(stream),
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("broker: xadd %s: %w", stream, err)
	}
	return id, nil
}

// EnsureGroup creates stream+group idempotently, tolerating BUSYGROUP.
func (c *Client) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, streamKey(stream), group, "0-0").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		if isBusyGroup(err) {
			return nil
		}
		return fmt.Errorf("broker: ensure group %s/%s: %w", stream, group, err)
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

// ReadGroup reads up to count new (">") messages for consumer in group,
// blocking up to blockMs milliseconds. Returns (nil, nil) on timeout.
func (c *Client) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, blockMs int64) ([]Message, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{streamKey(stream), ">"},
		Count:    count,
		Block:    time.Duration(blockMs) * time.Millisecond,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("broker: xreadgroup %s: %w", stream, err)
	}
	var out []Message
	for _, s := range res {
		for _, m := range s.Messages {
			msg, decodeErr := decodeMessage(stream, m)
			if decodeErr != nil {
				continue
			}
			out = append(out, msg)
		}
	}
	return out, nil
}

func decodeMessage(stream string, m redis.XMessage) (Message, error) {
	// canonical field is "json"; legacy producers wrote "data" holding
	// a JSON-encoded string.
	raw, ok := m.Values["json"]
	if !ok {
		raw, ok = m.Values["data"]
	}
	if !ok {
		return Message{}, fmt.Errorf("broker: message %s missing json/data field", m.ID)
	}
	s, ok := raw.(string)
	if !ok {
		return Message{}, fmt.Errorf("broker: message %s json/data field not a string", m.ID)
	}
	eventType, _ := m.Values["type"].(string)
	return Message{
		Stream:    stream,
		ID:        m.ID,
		EventType: eventType,
		Raw:       json.RawMessage(s),
	}, nil
}

// Ack acknowledges a delivered message.
func (c *Client) Ack(ctx context.Context, stream, group, id string) error {
	if err := c.rdb.XAck(ctx, streamKey(stream), group, id).Err(); err != nil {
		return fmt.Errorf("broker: xack %s/%s/%s: %w", stream, group, id, err)
	}
	return nil
}

// PendingCount returns the group's unacked message count (XPENDING summary).
func (c *Client) PendingCount(ctx context.Context, stream, group string) (int64, error) {
	summary, err := c.rdb.XPending(ctx, streamKey(stream), group).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("broker: xpending %s/%s: %w", stream, group, err)
	}
	return summary.Count, nil
}

// GroupLag returns the group's lag per XINFO GROUPS, or (0, false) when the
// server doesn't report it (pre-7.0 Redis).
func (c *Client) GroupLag(ctx context.Context, stream, group string) (int64, bool) {
	groups, err := c.rdb.XInfoGroups(ctx, streamKey(stream)).Result()
	if err != nil {
		return 0, false
	}
	for _, g := range groups {
		if g.Name == group {
			return g.Lag, true
		}
	}
	return 0, false
}

// StreamLength returns the stream's XLEN.
func (c *Client) StreamLength(ctx context.Context, stream string) (int64, error) {
	n, err := c.rdb.XLen(ctx, streamKey(stream)).Result()
	if err != nil {
		return 0, fmt.Errorf("broker: xlen %s: %w", stream, err)
	}
	return n, nil
}
