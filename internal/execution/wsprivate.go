package execution

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/bybit"
)

// wsOrderPush mirrors the fields of a bybit "order"/"execution" topic
// push this service cares about.
type wsOrderPush struct {
	OrderLinkID string `json:"orderLinkId"`
	OrderStatus string `json:"orderStatus"`
	CumExecQty  string `json:"cumExecQty"`
	AvgPrice    string `json:"avgPrice"`
}

// runPrivateWSIngest streams order/execution/position/wallet pushes and
// merges TP1/TP2 fill completions into positions.meta eagerly, so the
// ~5s reconcile loop can skip a REST round-trip when the WS push
// already caught the fill. LIVE only.
func (s *Service) runPrivateWSIngest(ctx context.Context) error {
	stream := bybit.NewPrivateStream(s.cfg.PrivateWSURL, s.cfg.BybitAPIKey, s.cfg.BybitAPISecret)
	out := make(chan bybit.PrivateEvent, 64)

	onReconnect := func(attempt int) {
		s.emitRiskEvent(ctx, events.RiskEventPayload{Type: events.RiskWSReconnect, Severity: "IMPORTANT", Detail: "private stream reconnect"})
	}

	errCh := make(chan error, 1)
	go func() { errCh <- stream.Run(ctx, out, onReconnect) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case ev := <-out:
			s.handlePrivateEvent(ctx, ev)
		}
	}
}

func (s *Service) handlePrivateEvent(ctx context.Context, ev bybit.PrivateEvent) {
	_ = s.store.InsertWSEvent(ctx, store.WSEvent{Topic: ev.Topic, TsMs: nowMs(), Payload: json.RawMessage(ev.Data)})

	switch ev.Topic {
	case "order", "execution":
		s.ingestOrderPush(ctx, ev.Data)
	}
}

// ingestOrderPush matches a fill push to a locally-tracked order by its
// client order-link-id and updates fill state, eagerly marking TP1/TP2
// completion onto the owning position's meta.
func (s *Service) ingestOrderPush(ctx context.Context, data json.RawMessage) {
	var pushes []wsOrderPush
	if err := json.Unmarshal(data, &pushes); err != nil {
		return
	}
	for _, push := range pushes {
		if push.OrderLinkID == "" || push.OrderStatus != "Filled" {
			continue
		}
		idem, purpose, ok := parseOrderLinkID(push.OrderLinkID)
		if !ok {
			continue
		}

		order, found, err := s.store.GetOrderByIdempotency(ctx, idem, purpose)
		if err != nil || !found {
			continue
		}
		qty := parseFloatOr(push.CumExecQty, order.Qty)
		fallbackAvg := 0.0
		if order.AvgPrice != nil {
			fallbackAvg = *order.AvgPrice
		}
		avg := parseFloatOr(push.AvgPrice, fallbackAvg)
		_ = s.store.UpdateOrderFill(ctx, order.OrderID, "FILLED", qty, avg, nowMs())

		if purpose != "tp1" && purpose != "tp2" {
			continue
		}
		p, found, err := s.store.GetPosition(ctx, idem)
		if err != nil || !found || p.Status != "OPEN" {
			continue
		}
		meta := decodePaperMeta(p.Meta)
		if purpose == "tp1" {
			if meta.TP1Filled {
				continue
			}
			meta.TP1Filled = true
		} else {
			if meta.TP2Filled {
				continue
			}
			meta.TP2Filled = true
		}
		raw, err := marshalMeta(meta)
		if err != nil {
			continue
		}
		p.Meta = raw
		_ = s.store.UpsertPosition(ctx, p)
	}
}

// parseOrderLinkID splits the "{idempotency_key}:{purpose}" convention
// this service's own order submissions use for client order-link-ids.
func parseOrderLinkID(linkID string) (idem, purpose string, ok bool) {
	for i := len(linkID) - 1; i >= 0; i-- {
		if linkID[i] == ':' {
			return linkID[:i], linkID[i+1:], true
		}
	}
	return "", "", false
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
