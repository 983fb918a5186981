package events

// OHLCV is the candle body shared by BarClosePayload and indicator inputs.
type OHLCV struct {
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// BarClosePayload is published by marketdata on every confirmed,
// deduplicated bar close.
type BarClosePayload struct {
	Symbol      string         `json:"symbol" validate:"required"`
	Timeframe   string         `json:"timeframe" validate:"required"`
	CloseTimeMs int64          `json:"close_time_ms" validate:"required"`
	IsFinal     bool           `json:"is_final"`
	Source      string         `json:"source" validate:"required,oneof=ws rest derived gapfill derived_8h"`
	OHLCV       OHLCV          `json:"ohlcv"`
	Ext         map[string]any `json:"ext,omitempty"`
}

// Confirmations describes how many/which confluence checks fired.
type Confirmations struct {
	MinRequired int      `json:"min_required"`
	HitCount    int      `json:"hit_count"`
	Hits        []string `json:"hits"`
}

// Lifecycle carries validity window info shared by signal/plan.
type Lifecycle struct {
	Status      string `json:"status"`
	ValidFromMs int64  `json:"valid_from_ms"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

// SignalPayload is emitted by strategy when a divergence setup with
// sufficient confluence is detected.
type SignalPayload struct {
	Symbol         string         `json:"symbol" validate:"required"`
	Timeframe      string         `json:"timeframe" validate:"required"`
	CloseTimeMs    int64          `json:"close_time_ms" validate:"required"`
	SetupID        string         `json:"setup_id" validate:"required"`
	TriggerID      string         `json:"trigger_id" validate:"required"`
	Bias           string         `json:"bias" validate:"required,oneof=LONG SHORT"`
	VegasState     string         `json:"vegas_state"`
	Confirmations  Confirmations  `json:"confirmations"`
	Lifecycle      Lifecycle      `json:"lifecycle"`
	IdempotencyKey string         `json:"idempotency_key" validate:"required"`
	Ext            map[string]any `json:"ext,omitempty"`
}

// TPRule describes one staged take-profit leg.
type TPRule struct {
	R   float64 `json:"r"`
	Pct float64 `json:"pct"`
}

// TPRunnerRule is the trailing runner leg.
type TPRunnerRule struct {
	Pct  float64 `json:"pct"`
	Mode string  `json:"mode"`
}

// TPRules bundles the fixed staged-exit plan.
type TPRules struct {
	TP1         TPRule       `json:"tp1"`
	TP2         TPRule       `json:"tp2"`
	Tp3Trail    TPRunnerRule `json:"tp3_trail"`
	ReduceOnly  bool         `json:"reduce_only"`
}

// SecondarySLRule names the secondary exit rule type.
type SecondarySLRule struct {
	Type string `json:"type"`
}

// RiskParams carries sizing/admission parameters for the plan.
type RiskParams struct {
	RiskPct                 float64 `json:"risk_pct"`
	MaxOpenPositionsDefault int     `json:"max_open_positions_default"`
}

// Traceability links a plan back to the originating setup/trigger.
type Traceability struct {
	SetupID   string `json:"setup_id"`
	TriggerID string `json:"trigger_id"`
}

// TradePlanPayload is emitted for auto_timeframes alongside a signal
// when the setup also produces a concrete entry/exit plan.
type TradePlanPayload struct {
	PlanID          string          `json:"plan_id" validate:"required"`
	IdempotencyKey  string          `json:"idempotency_key" validate:"required"`
	Symbol          string          `json:"symbol" validate:"required"`
	Timeframe       string          `json:"timeframe" validate:"required"`
	Status          string          `json:"status"`
	ValidFromMs     int64           `json:"valid_from_ms"`
	ExpiresAtMs     int64           `json:"expires_at_ms"`
	Side            string          `json:"side" validate:"required,oneof=BUY SELL"`
	EntryPrice      float64         `json:"entry_price" validate:"required"`
	PrimarySLPrice  float64         `json:"primary_sl_price" validate:"required"`
	TPRules         TPRules         `json:"tp_rules"`
	SecondarySLRule SecondarySLRule `json:"secondary_sl_rule"`
	RiskParams      RiskParams      `json:"risk_params"`
	Traceability    Traceability    `json:"traceability"`
	Ext             map[string]any  `json:"ext,omitempty"`
}

// ExecutionReportPayload reports an order/position lifecycle
// transition.
type ExecutionReportPayload struct {
	PlanID      string         `json:"plan_id" validate:"required"`
	Status      string         `json:"status" validate:"required"`
	Symbol      string         `json:"symbol,omitempty"`
	Timeframe   string         `json:"timeframe,omitempty"`
	FilledQty   float64        `json:"filled_qty,omitempty"`
	AvgPrice    float64        `json:"avg_price,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	OrderID     string         `json:"order_id,omitempty"`
	RetryCount  int            `json:"retry_count,omitempty"`
	LatencyMs   int64          `json:"latency_ms,omitempty"`
	SlippageBps float64        `json:"slippage_bps,omitempty"`
	FillRatio   float64        `json:"fill_ratio,omitempty"`
	Ext         map[string]any `json:"ext,omitempty"`
}

// Execution report status values.
const (
	StatusOrderSubmitted  = "ORDER_SUBMITTED"
	StatusOrderRejected   = "ORDER_REJECTED"
	StatusFilled          = "FILLED"
	StatusTPHit           = "TP_HIT"
	StatusPrimarySLHit    = "PRIMARY_SL_HIT"
	StatusSecondarySLExit = "SECONDARY_SL_EXIT"
	StatusRunnerSLUpdated = "RUNNER_SL_UPDATED"
	StatusPositionClosed  = "POSITION_CLOSED"
)

// RiskEventPayload is the closed-enum envelope for any operational or
// risk condition worth surfacing outside its own service.
type RiskEventPayload struct {
	Type         string         `json:"type" validate:"required"`
	Severity     string         `json:"severity" validate:"required,oneof=CRITICAL IMPORTANT INFO"`
	Symbol       string         `json:"symbol,omitempty"`
	RetryAfterMs int64          `json:"retry_after_ms,omitempty"`
	Detail       string         `json:"detail,omitempty"`
	Ext          map[string]any `json:"ext,omitempty"`
}

// Risk event type constants.
const (
	RiskRateLimit            = "RATE_LIMIT"
	RiskCooldownBlocked      = "COOLDOWN_BLOCKED"
	RiskMaxPositionsBlocked  = "MAX_POSITIONS_BLOCKED"
	RiskCircuitBlock         = "RISK_CIRCUIT_BLOCK"
	RiskPositionMutexBlocked = "POSITION_MUTEX_BLOCKED"
	RiskKillSwitchOn         = "KILL_SWITCH_ON"
	RiskSignalExpired        = "SIGNAL_EXPIRED"
	RiskOrderTimeout         = "ORDER_TIMEOUT"
	RiskOrderPartialFill     = "ORDER_PARTIAL_FILL"
	RiskOrderCancelled       = "ORDER_CANCELLED"
	RiskOrderRetry           = "ORDER_RETRY"
	RiskOrderFallbackMarket  = "ORDER_FALLBACK_MARKET"
	RiskPriceJump            = "PRICE_JUMP"
	RiskVolumeAnomaly        = "VOLUME_ANOMALY"
	RiskBarDuplicate         = "BAR_DUPLICATE"
	RiskDataLag              = "DATA_LAG"
	RiskWSReconnect          = "WS_RECONNECT"
	RiskConsistencyDrift     = "CONSISTENCY_DRIFT"
	RiskMarketState          = "MARKET_STATE"
	RiskDataGap              = "DATA_GAP"
	RiskSetSLFailed          = "SET_SL_FAILED"
	RiskExitRuleTriggered    = "EXIT_RULE_TRIGGERED"
	RiskSLUpdate             = "SL_UPDATE"
	RiskTPFilled             = "TP_FILLED"
)
