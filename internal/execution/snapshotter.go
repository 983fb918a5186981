package execution

import (
	"context"
	"encoding/json"
	"time"

	"github.com/macd3/futures-engine/internal/store"
)

const snapshotterInterval = 30 * time.Second

// runSnapshotterLoop periodically captures account/wallet state for
// audit and incident replay.
func (s *Service) runSnapshotterLoop(ctx context.Context) error {
	ticker := time.NewTicker(snapshotterInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.takeSnapshot(ctx)
		}
	}
}

func (s *Service) takeSnapshot(ctx context.Context) {
	now := nowMs()

	if s.cfg.ExecutionMode == "LIVE" {
		balances, err := s.bybit.GetWalletBalance(ctx, "UNIFIED")
		if err != nil {
			s.log.Warn().Err(err).Msg("execution: snapshot wallet balance failed")
		} else {
			payload, _ := json.Marshal(balances)
			if err := s.store.InsertWalletSnapshot(ctx, store.WalletSnapshot{Source: "bybit", TsMs: now, Payload: payload}); err != nil {
				s.log.Warn().Err(err).Msg("execution: insert wallet snapshot failed")
			}
		}

		positions, err := s.bybit.GetPositions(ctx, "")
		if err != nil {
			s.log.Warn().Err(err).Msg("execution: snapshot positions failed")
		} else {
			payload, _ := json.Marshal(positions)
			if err := s.store.InsertAccountSnapshot(ctx, store.AccountSnapshot{Source: "bybit", TsMs: now, Payload: payload}); err != nil {
				s.log.Warn().Err(err).Msg("execution: insert account snapshot failed")
			}
		}
		return
	}

	open, err := s.store.ListOpenPositions(ctx, "")
	if err != nil {
		s.log.Warn().Err(err).Msg("execution: snapshot open positions failed")
		return
	}
	payload, _ := json.Marshal(open)
	if err := s.store.InsertAccountSnapshot(ctx, store.AccountSnapshot{Source: s.cfg.ExecutionMode, TsMs: now, Payload: payload}); err != nil {
		s.log.Warn().Err(err).Msg("execution: insert paper account snapshot failed")
	}
}
