package notifier

import (
	"fmt"
	"strings"

	"github.com/macd3/futures-engine/internal/events"
)

// render decodes the stream-appropriate payload and produces the
// (severity, text) pair to store/send. Output is plain English text
// with per-status/per-type branching; messenger-specific formatting
// (emoji, rich cards) is deliberately not handled here.
func (s *Service) render(env events.Envelope, stream string) (severity, text string, err error) {
	switch stream {
	case events.StreamExecutionReport:
		var p events.ExecutionReportPayload
		if decodeErr := env.DecodePayload(&p); decodeErr != nil {
			return "", "", decodeErr
		}
		return renderExecutionReport(p)
	case events.StreamRiskEvent:
		var p events.RiskEventPayload
		if decodeErr := env.DecodePayload(&p); decodeErr != nil {
			return "", "", decodeErr
		}
		return renderRiskEvent(p)
	default:
		return "", "", fmt.Errorf("notifier: unknown stream %q", stream)
	}
}

// severityFromExecutionStatus maps an execution_report status to a
// notifier severity.
func severityFromExecutionStatus(status string) string {
	switch strings.ToUpper(status) {
	case events.StatusOrderSubmitted:
		return "INFO"
	case events.StatusOrderRejected, events.StatusPrimarySLHit, events.StatusSecondarySLExit,
		events.StatusTPHit, events.StatusFilled, events.StatusPositionClosed, events.StatusRunnerSLUpdated:
		return "IMPORTANT"
	default:
		return "IMPORTANT"
	}
}

func renderExecutionReport(p events.ExecutionReportPayload) (string, string, error) {
	sev := severityFromExecutionStatus(p.Status)

	var b strings.Builder
	switch strings.ToUpper(p.Status) {
	case events.StatusPositionClosed, events.StatusPrimarySLHit, events.StatusSecondarySLExit, events.StatusTPHit:
		title := map[string]string{
			events.StatusPositionClosed:  "Position closed",
			events.StatusPrimarySLHit:    "Stop loss hit",
			events.StatusSecondarySLExit: "Runner/secondary exit",
			events.StatusTPHit:           "Take-profit hit",
		}[strings.ToUpper(p.Status)]
		fmt.Fprintf(&b, "%s: %s %s\n", title, p.Symbol, p.Timeframe)
		if p.FilledQty != 0 {
			fmt.Fprintf(&b, "qty: %.4f\n", p.FilledQty)
		}
		if p.AvgPrice != 0 {
			fmt.Fprintf(&b, "avg_price: %.4f\n", p.AvgPrice)
		}
		if p.Reason != "" {
			fmt.Fprintf(&b, "reason: %s\n", p.Reason)
		}
	case events.StatusFilled:
		fmt.Fprintf(&b, "Entry filled: %s %s\n", p.Symbol, p.Timeframe)
		if p.FilledQty != 0 {
			fmt.Fprintf(&b, "qty: %.4f\n", p.FilledQty)
		}
		if p.AvgPrice != 0 {
			fmt.Fprintf(&b, "avg_price: %.4f\n", p.AvgPrice)
		}
	case events.StatusOrderSubmitted:
		fmt.Fprintf(&b, "Order submitted: %s %s\n", p.Symbol, p.Timeframe)
		if p.OrderID != "" {
			fmt.Fprintf(&b, "order_id: %s\n", p.OrderID)
		}
	case events.StatusRunnerSLUpdated:
		fmt.Fprintf(&b, "Runner stop updated: %s %s\n", p.Symbol, p.Timeframe)
		if p.AvgPrice != 0 {
			fmt.Fprintf(&b, "new_sl: %.4f\n", p.AvgPrice)
		}
	default:
		fmt.Fprintf(&b, "Execution error: %s %s\n", p.Symbol, p.Status)
		if p.Reason != "" {
			fmt.Fprintf(&b, "reason: %s\n", p.Reason)
		}
	}
	if p.PlanID != "" {
		fmt.Fprintf(&b, "#plan_id %s", p.PlanID)
	}
	return sev, strings.TrimRight(b.String(), "\n"), nil
}

func renderRiskEvent(p events.RiskEventPayload) (string, string, error) {
	sev := p.Severity
	if sev == "" {
		sev = "INFO"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s", p.Type)
	if p.Symbol != "" {
		fmt.Fprintf(&b, ": %s", p.Symbol)
	}
	b.WriteByte('\n')
	if p.Detail != "" {
		fmt.Fprintf(&b, "detail: %s\n", p.Detail)
	}
	if p.RetryAfterMs != 0 {
		fmt.Fprintf(&b, "retry_after_ms: %d\n", p.RetryAfterMs)
	}
	return sev, strings.TrimRight(b.String(), "\n"), nil
}
