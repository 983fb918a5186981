package notifier

import (
	"context"
	"time"
)

// runRetryLoop polls for PENDING/RETRYING rows whose next_attempt_at has
// passed and re-attempts delivery.
func (s *Service) runRetryLoop(ctx context.Context) error {
	ticker := time.NewTicker(retryLoopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.retryDue(ctx)
		}
	}
}

func (s *Service) retryDue(ctx context.Context) {
	due, err := s.store.ListDue(ctx, nowMs())
	if err != nil {
		s.log.Warn().Err(err).Msg("notifier: list due notifications failed")
		return
	}
	for _, n := range due {
		if n.Attempts >= maxAttempts {
			continue
		}
		if !severityWarrantsSend(n.Severity) {
			// Shouldn't normally land here (attemptSend gates on insert),
			// but a row can arrive via external repair — never retry what
			// doesn't warrant sending.
			continue
		}
		if err := s.send(ctx, n.Severity, n.Text); err != nil {
			next := nowMs() + backoffSeconds(n.Attempts+1)*1000
			if markErr := s.store.MarkRetry(ctx, n.EventID, next, err.Error()); markErr != nil {
				s.log.Error().Err(markErr).Str("event_id", n.EventID).Msg("notifier: mark retry failed")
			}
			continue
		}
		if err := s.store.MarkSent(ctx, n.EventID); err != nil {
			s.log.Error().Err(err).Str("event_id", n.EventID).Msg("notifier: mark sent failed")
		}
	}
}

// backoffSeconds implements the retry backoff formula: 2^(attempts-1)
// seconds, capped at 300.
func backoffSeconds(attempts int) int64 {
	if attempts < 1 {
		attempts = 1
	}
	secs := int64(1) << uint(attempts-1)
	if secs > 300 || secs < 0 {
		return 300
	}
	return secs
}
