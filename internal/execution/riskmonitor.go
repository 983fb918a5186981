package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/macd3/futures-engine/internal/events"
)

const riskMonitorInterval = 10 * time.Second

// runRiskMonitorLoop periodically marks-to-market the day's equity and
// re-evaluates the soft/hard drawdown circuit breaker.
func (s *Service) runRiskMonitorLoop(ctx context.Context) error {
	ticker := time.NewTicker(riskMonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.evaluateRiskState(ctx); err != nil {
				s.log.Warn().Err(err).Msg("execution: risk monitor pass failed")
			}
		}
	}
}

func (s *Service) evaluateRiskState(ctx context.Context) error {
	equity, err := s.resolveEquity(ctx)
	if err != nil {
		return fmt.Errorf("resolve equity: %w", err)
	}
	tradeDate := time.UnixMilli(nowMs()).UTC().Format("2006-01-02")
	rs, err := s.store.GetOrCreateRiskState(ctx, tradeDate, equity)
	if err != nil {
		return fmt.Errorf("get risk state: %w", err)
	}

	rs.CurrentEquity = equity
	if equity < rs.MinEquity || rs.MinEquity == 0 {
		rs.MinEquity = equity
	}
	if equity > rs.MaxEquity {
		rs.MaxEquity = equity
	}

	// The configured thresholds are fractions (0.02 = 2%); evalDrawdown
	// works in percent.
	decision := evalDrawdown(rs.StartingEquity, rs.MinEquity, s.cfg.DailyDrawdownSoftPct*100, s.cfg.DailyDrawdownHardPct*100)
	wasSoftHalt, wasHardHalt := rs.SoftHalt, rs.HardHalt
	rs.DrawdownPct = decision.DrawdownPct
	rs.SoftHalt = decision.SoftHalt
	rs.HardHalt = decision.HardHalt

	if err := s.store.UpdateRiskState(ctx, rs); err != nil {
		return fmt.Errorf("update risk state: %w", err)
	}

	if decision.HardHalt && !wasHardHalt {
		s.emitRiskEvent(ctx, events.RiskEventPayload{
			Type: "DRAWDOWN_HARD_HALT", Severity: "CRITICAL", Detail: "daily drawdown hard halt triggered",
		})
		s.closeAllOpenPositionsForHardHalt(ctx)
	} else if decision.SoftHalt && !wasSoftHalt {
		s.emitRiskEvent(ctx, events.RiskEventPayload{
			Type: "DRAWDOWN_SOFT_HALT", Severity: "IMPORTANT", Detail: "daily drawdown soft halt triggered",
		})
	}
	return nil
}

// closeAllOpenPositionsForHardHalt force-closes every open position the
// moment the day's hard-halt threshold is crossed, since no new entries
// and no held risk is the only safe state past that line.
func (s *Service) closeAllOpenPositionsForHardHalt(ctx context.Context) {
	open, err := s.store.ListOpenPositions(ctx, "")
	if err != nil {
		s.log.Error().Err(err).Msg("execution: list open positions for hard halt failed")
		return
	}
	for _, p := range open {
		if err := s.closePositionMarket(ctx, p, "hard_halt"); err != nil {
			s.log.Error().Err(err).Str("idempotency_key", p.IdempotencyKey).Msg("execution: hard halt close failed")
		}
	}
}
