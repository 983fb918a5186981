package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/macd3/futures-engine/internal/events"
)

func TestSeverityFromExecutionStatus(t *testing.T) {
	assert.Equal(t, "INFO", severityFromExecutionStatus("ORDER_SUBMITTED"))
	assert.Equal(t, "IMPORTANT", severityFromExecutionStatus("ORDER_REJECTED"))
	assert.Equal(t, "IMPORTANT", severityFromExecutionStatus("PRIMARY_SL_HIT"))
	assert.Equal(t, "IMPORTANT", severityFromExecutionStatus("TP_HIT"))
	assert.Equal(t, "IMPORTANT", severityFromExecutionStatus("FILLED"))
	assert.Equal(t, "IMPORTANT", severityFromExecutionStatus("POSITION_CLOSED"))
	assert.Equal(t, "IMPORTANT", severityFromExecutionStatus("UNKNOWN_STATUS"))
}

func TestRenderExecutionReport_PositionClosedIncludesReasonAndPlanID(t *testing.T) {
	p := events.ExecutionReportPayload{
		PlanID: "plan-1", Status: events.StatusPositionClosed, Symbol: "BTCUSDT",
		Timeframe: "1h", FilledQty: 0.01, AvgPrice: 50000, Reason: "TP2",
	}
	sev, text, err := renderExecutionReport(p)
	assert.NoError(t, err)
	assert.Equal(t, "IMPORTANT", sev)
	assert.Contains(t, text, "Position closed")
	assert.Contains(t, text, "BTCUSDT")
	assert.Contains(t, text, "reason: TP2")
	assert.Contains(t, text, "#plan_id plan-1")
}

func TestRenderExecutionReport_OrderSubmittedIsInfoAndIncludesOrderID(t *testing.T) {
	p := events.ExecutionReportPayload{
		PlanID: "plan-2", Status: events.StatusOrderSubmitted, Symbol: "ETHUSDT",
		Timeframe: "4h", OrderID: "ord-9",
	}
	sev, text, err := renderExecutionReport(p)
	assert.NoError(t, err)
	assert.Equal(t, "INFO", sev)
	assert.Contains(t, text, "order_id: ord-9")
}

func TestRenderRiskEvent_DefaultsSeverityToInfoWhenUnset(t *testing.T) {
	p := events.RiskEventPayload{Type: events.RiskDataGap, Symbol: "BTCUSDT", Detail: "gap detected"}
	sev, text, err := renderRiskEvent(p)
	assert.NoError(t, err)
	assert.Equal(t, "INFO", sev)
	assert.Contains(t, text, "DATA_GAP")
	assert.Contains(t, text, "BTCUSDT")
	assert.Contains(t, text, "detail: gap detected")
}

func TestRenderRiskEvent_PreservesExplicitSeverityAndRetryAfter(t *testing.T) {
	p := events.RiskEventPayload{Type: events.RiskRateLimit, Severity: "CRITICAL", RetryAfterMs: 1500}
	sev, text, err := renderRiskEvent(p)
	assert.NoError(t, err)
	assert.Equal(t, "CRITICAL", sev)
	assert.Contains(t, text, "retry_after_ms: 1500")
}
