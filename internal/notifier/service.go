// Package notifier consumes execution_report and risk_event, renders a
// human-readable message for each, and delivers it to an outbound
// messenger with persistent at-least-once retry. The consumer/retry
// loop orchestration follows the same cooperating-loop idiom as
// internal/strategy and internal/execution's Service.Run.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/macd3/futures-engine/internal/events"
	"github.com/macd3/futures-engine/internal/store"
	"github.com/macd3/futures-engine/pkg/broker"
)

// consumerGroup matches every other service's shared group name —
// single-tenant assumption. It is the same literal as
// REDIS_STREAM_GROUP's default in pkg/config; that setting is not read
// here, so changing it does not change the group.
const consumerGroup = "macd3-workers"

// retryLoopInterval is the retry loop's poll cadence. There is no
// runtime override for this; it stays a constant.
const retryLoopInterval = 5 * time.Second

// maxAttempts bounds the persistent retry loop — past this a
// notification stays RETRYING in the notifications table and the retry
// loop skips it rather than retrying forever.
const maxAttempts = 20

// Config is the notifier service's tunable behavior, sourced from
// pkg/config.
type Config struct {
	Consumer         string
	MessengerWebhookURL string
}

// Sender delivers one rendered notification to the outbound messenger.
// Abstracted so tests can substitute a stub without a live Service.
type Sender interface {
	Send(ctx context.Context, severity, text string) error
}

// Service consumes execution_report and risk_event, dedupes and renders
// each into a Notification row, attempts delivery for IMPORTANT/CRITICAL
// severities, and retries rows whose send failed (status RETRYING) on a
// backoff schedule. No row is ever set to a FAILED status.
type Service struct {
	store  *store.Store
	broker *broker.Client
	sender Sender
	log    zerolog.Logger
	cfg    Config
}

// New builds a Service. sender may be nil, in which case outbound sends
// are skipped entirely and each notification is recorded and marked SENT
// without being delivered.
func New(st *store.Store, br *broker.Client, sender Sender, log zerolog.Logger, cfg Config) *Service {
	return &Service{store: st, broker: br, sender: sender, log: log, cfg: cfg}
}

// Run starts the stream consumer and the persistent retry loop and
// blocks until ctx is cancelled or either returns a fatal error.
func (s *Service) Run(ctx context.Context) error {
	for _, stream := range []string{events.StreamExecutionReport, events.StreamRiskEvent} {
		if err := s.broker.EnsureGroup(ctx, stream, consumerGroup); err != nil {
			return fmt.Errorf("notifier: ensure group %s: %w", stream, err)
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("notifier: %s: %w", name, err)
			}
		}()
	}

	run("notification_consumer", s.runConsumer)
	run("retry_loop", s.runRetryLoop)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-ctx.Done():
		<-done
		return ctx.Err()
	case err := <-errCh:
		return err
	case <-done:
		return nil
	}
}

// runConsumer round-robins both streams each poll cycle.
func (s *Service) runConsumer(ctx context.Context) error {
	streams := []string{events.StreamExecutionReport, events.StreamRiskEvent}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for _, stream := range streams {
			msgs, err := s.broker.ReadGroup(ctx, stream, consumerGroup, s.cfg.Consumer, 20, 500)
			if err != nil {
				return fmt.Errorf("read %s: %w", stream, err)
			}
			for _, m := range msgs {
				s.handleMessage(ctx, stream, m)
			}
		}
	}
}

// handleMessage parses, dedupes, renders, and (maybe) sends one stream
// delivery. Every outcome — success, parse failure, send failure — ends
// with an ACK: the stream is never used to retry a message, only the
// notifications table's own backoff/retry loop does that.
func (s *Service) handleMessage(ctx context.Context, stream string, m broker.Message) {
	defer s.ack(ctx, stream, m)

	var env events.Envelope
	if err := json.Unmarshal(m.Raw, &env); err != nil {
		s.publishDLQ(ctx, stream, m, "unmarshal envelope failed: "+err.Error())
		return
	}

	sev, text, err := s.render(env, stream)
	if err != nil {
		s.publishDLQ(ctx, stream, m, "decode payload failed: "+err.Error())
		return
	}

	msgID := m.ID
	n := store.Notification{
		EventID:   env.EventID,
		Stream:    stream,
		MessageID: &msgID,
		Severity:  sev,
		Text:      text,
		Status:    "PENDING",
	}
	inserted, err := s.store.InsertNotification(ctx, n)
	if err != nil {
		s.log.Error().Err(err).Str("event_id", env.EventID).Msg("notifier: insert notification failed")
		return
	}
	if !inserted {
		// Already recorded by a prior delivery of this event_id — the
		// at-least-once safety invariant: exactly one SENT per event_id.
		return
	}

	s.attemptSend(ctx, n.EventID, sev, text)
}

func (s *Service) ack(ctx context.Context, stream string, m broker.Message) {
	if err := s.broker.Ack(ctx, stream, consumerGroup, m.ID); err != nil {
		s.log.Error().Err(err).Str("stream", stream).Str("id", m.ID).Msg("notifier: ack failed")
	}
}

func (s *Service) publishDLQ(ctx context.Context, stream string, m broker.Message, reason string) {
	if _, err := s.broker.PublishDLQ(ctx, nowMs(), stream, m.ID, reason, nil); err != nil {
		s.log.Error().Err(err).Str("stream", stream).Msg("notifier: publish dlq failed")
	}
}

// attemptSend is gated to IMPORTANT/CRITICAL severities; INFO
// notifications are recorded but never sent.
func (s *Service) attemptSend(ctx context.Context, eventID, severity, text string) {
	if !severityWarrantsSend(severity) {
		return
	}
	if err := s.send(ctx, severity, text); err != nil {
		s.log.Warn().Err(err).Str("event_id", eventID).Msg("notifier: send failed, scheduling retry")
		if markErr := s.store.MarkRetry(ctx, eventID, nowMs()+backoffSeconds(1)*1000, err.Error()); markErr != nil {
			s.log.Error().Err(markErr).Str("event_id", eventID).Msg("notifier: mark retry failed")
		}
		return
	}
	if err := s.store.MarkSent(ctx, eventID); err != nil {
		s.log.Error().Err(err).Str("event_id", eventID).Msg("notifier: mark sent failed")
	}
}

func (s *Service) send(ctx context.Context, severity, text string) error {
	if s.sender == nil {
		return nil
	}
	return s.sender.Send(ctx, severity, text)
}

func severityWarrantsSend(severity string) bool {
	return severity == "IMPORTANT" || severity == "CRITICAL"
}

var nowMsFn = defaultNowMs

func nowMs() int64 { return nowMsFn() }

func defaultNowMs() int64 { return time.Now().UnixMilli() }
