package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/timeframe"
)

const positionSyncInterval = 10 * time.Second

// runPositionSyncLoop cross-checks every OPEN DB position against the
// exchange's live position list and closes out any that the exchange
// already shows flat — the backstop for a missed fill/WS event. LIVE
// only.
func (s *Service) runPositionSyncLoop(ctx context.Context) error {
	ticker := time.NewTicker(positionSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.positionSyncOnce(ctx); err != nil {
				s.log.Warn().Err(err).Msg("execution: position sync pass failed")
			}
		}
	}
}

func (s *Service) positionSyncOnce(ctx context.Context) error {
	open, err := s.store.ListOpenPositions(ctx, "")
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}
	bySymbol := make(map[string][]store.Position)
	for _, p := range open {
		bySymbol[p.Symbol] = append(bySymbol[p.Symbol], p)
	}
	for symbol, positions := range bySymbol {
		exchangePositions, err := s.bybit.GetPositions(ctx, symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("execution: get positions failed")
			continue
		}
		var exchangeSize float64
		for _, ep := range exchangePositions {
			exchangeSize += ep.Size
		}
		if exchangeSize > 1e-12 {
			continue
		}
		for _, p := range positions {
			s.closeStalePosition(ctx, p)
		}
	}
	return nil
}

// closeStalePosition marks a DB position CLOSED once the exchange shows
// it flat when our own fill-tracking never caught the close. Without a
// TP1 fill on record, the exit is inferred as a stop-loss and a
// cooldown is written.
func (s *Service) closeStalePosition(ctx context.Context, p store.Position) {
	meta := decodePaperMeta(p.Meta)
	now := nowMs()
	reason := "STOP_LOSS"
	if meta.TP1Filled {
		reason = "POSITION_CLOSED"
	}
	p.Status = "CLOSED"
	p.ClosedAtMs = &now
	p.ExitReason = &reason
	if err := s.store.UpsertPosition(ctx, p); err != nil {
		s.log.Error().Err(err).Str("idempotency_key", p.IdempotencyKey).Msg("execution: close stale position failed")
		return
	}

	if reason == "STOP_LOSS" && s.cfg.CooldownEnabled {
		if bars := s.cfg.CooldownBars(p.Timeframe); bars > 0 {
			if strideMs, err := timeframe.MS(p.Timeframe); err == nil {
				_ = s.store.UpsertCooldown(ctx, store.Cooldown{
					Symbol: p.Symbol, Side: p.Side, Timeframe: p.Timeframe, Reason: "PRIMARY_SL_HIT",
					UntilTsMs: now + int64(bars)*strideMs,
				})
			}
		}
	}

	s.publishExecutionReport(ctx, "", events.ExecutionReportPayload{
		PlanID: p.IdempotencyKey, Status: events.StatusPositionClosed, Symbol: p.Symbol, Timeframe: p.Timeframe,
		Reason: reason,
	})
}
