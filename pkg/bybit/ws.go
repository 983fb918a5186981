package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/macd3/futures-engine/pkg/retry"
)

// KlineEvent is one public kline.* push, already decoded to the fields
// marketdata needs to build a Bar.
type KlineEvent struct {
	Symbol    string
	Interval  string
	StartMs   int64
	EndMs     int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Turnover  float64
	Confirm   bool
}

type wsEnvelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// PublicStream manages a reconnecting public WS connection subscribed to
// kline topics for one or more symbol/interval pairs over Bybit's single
// multiplexed connection with a JSON subscribe/unsubscribe op.
type PublicStream struct {
	url string
}

// NewPublicStream wraps a Bybit public WS base URL (BYBIT_WS_PUBLIC_URL).
func NewPublicStream(url string) *PublicStream { return &PublicStream{url: url} }

// klineTopic builds "kline.{interval}.{symbol}" per Bybit V5 public topic naming.
func klineTopic(interval, symbol string) string {
	return fmt.Sprintf("kline.%s.%s", interval, symbol)
}

// Run connects, subscribes to topics, and pushes decoded kline events to
// out until ctx is cancelled, reconnecting with the shared WS backoff
// curve (pkg/retry.WSReconnectBackoff) on any read/dial error.
func (s *PublicStream) Run(ctx context.Context, topics []string, out chan<- KlineEvent, onReconnect func(attempt int)) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.runOnce(ctx, topics, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		if onReconnect != nil {
			onReconnect(attempt)
		}
		select {
		case <-time.After(retry.WSReconnectBackoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
		_ = err
	}
}

func (s *PublicStream) runOnce(ctx context.Context, topics []string, out chan<- KlineEvent) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("bybit: dial public ws: %w", err)
	}
	defer conn.Close()

	sub := map[string]any{"op": "subscribe", "args": topics}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("bybit: subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
			return fmt.Errorf("bybit: ws read: %w", err)
		}
		ev, ok, perr := parseKlineEvent(msg)
		if perr != nil {
			continue
		}
		if !ok {
			continue
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseKlineEvent(msg []byte) (KlineEvent, bool, error) {
	var env wsEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return KlineEvent{}, false, err
	}
	if !strings.HasPrefix(env.Topic, "kline.") {
		return KlineEvent{}, false, nil
	}
	parts := strings.SplitN(env.Topic, ".", 3)
	if len(parts) != 3 {
		return KlineEvent{}, false, fmt.Errorf("bybit: malformed kline topic %q", env.Topic)
	}
	var rows []struct {
		Start    int64  `json:"start"`
		End      int64  `json:"end"`
		Interval string `json:"interval"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
		Turnover string `json:"turnover"`
		Confirm  bool   `json:"confirm"`
	}
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return KlineEvent{}, false, err
	}
	if len(rows) == 0 {
		return KlineEvent{}, false, nil
	}
	r := rows[0]
	ev := KlineEvent{Symbol: parts[2], Interval: parts[1], StartMs: r.Start, EndMs: r.End, Confirm: r.Confirm}
	ev.Open, _ = strconv.ParseFloat(r.Open, 64)
	ev.High, _ = strconv.ParseFloat(r.High, 64)
	ev.Low, _ = strconv.ParseFloat(r.Low, 64)
	ev.Close, _ = strconv.ParseFloat(r.Close, 64)
	ev.Volume, _ = strconv.ParseFloat(r.Volume, 64)
	ev.Turnover, _ = strconv.ParseFloat(r.Turnover, 64)
	return ev, true, nil
}

// PrivateStream manages the authenticated private WS (order/execution/
// position/wallet topics), signed via HMAC-SHA256 of "GET/realtime{expires}".
type PrivateStream struct {
	url       string
	apiKey    string
	apiSecret string
}

// NewPrivateStream wraps BYBIT_WS_PRIVATE_URL plus credentials.
func NewPrivateStream(url, apiKey, apiSecret string) *PrivateStream {
	return &PrivateStream{url: url, apiKey: apiKey, apiSecret: apiSecret}
}

// PrivateEvent is a decoded push on one of the private topics.
type PrivateEvent struct {
	Topic string
	Data  json.RawMessage
}

// Run connects, authenticates, subscribes to order/execution/position/
// wallet topics, and streams raw per-topic events until ctx is cancelled,
// reconnecting with the shared WS backoff curve.
func (s *PrivateStream) Run(ctx context.Context, out chan<- PrivateEvent, onReconnect func(attempt int)) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_ = s.runOnce(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempt++
		if onReconnect != nil {
			onReconnect(attempt)
		}
		select {
		case <-time.After(retry.WSReconnectBackoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *PrivateStream) runOnce(ctx context.Context, out chan<- PrivateEvent) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("bybit: dial private ws: %w", err)
	}
	defer conn.Close()

	expires := time.Now().Add(10*time.Second).UnixMilli()
	signPayload := fmt.Sprintf("GET/realtime%d", expires)
	mac := hmac.New(sha256.New, []byte(s.apiSecret))
	mac.Write([]byte(signPayload))
	sig := hex.EncodeToString(mac.Sum(nil))

	auth := map[string]any{"op": "auth", "args": []any{s.apiKey, expires, sig}}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("bybit: private ws auth: %w", err)
	}
	sub := map[string]any{"op": "subscribe", "args": []string{"order", "execution", "position", "wallet"}}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("bybit: private ws subscribe: %w", err)
	}

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		conn.Close()
		close(done)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return ctx.Err()
			default:
			}
			return fmt.Errorf("bybit: private ws read: %w", err)
		}
		var env wsEnvelope
		if err := json.Unmarshal(msg, &env); err != nil || env.Topic == "" {
			continue
		}
		select {
		case out <- PrivateEvent{Topic: env.Topic, Data: env.Data}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
