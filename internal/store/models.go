package store

import "encoding/json"

// Bar is one closed OHLCV candle, keyed by (symbol, timeframe, close_time_ms).
type Bar struct {
	Symbol      string
	Timeframe   string
	CloseTimeMs int64
	OpenTimeMs  int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	Turnover    float64
	Source      string
}

// BarCloseEmit records that a bar_close event was already published for a
// given (symbol, timeframe, close_time_ms) triple, so a restart or
// reconnect never double-emits.
type BarCloseEmit struct {
	Symbol      string
	Timeframe   string
	CloseTimeMs int64
	EventID     string
	EmittedAtMs int64
}

// Signal is a detected divergence setup, persisted by idempotency_key so a
// duplicate bar_close replay never produces two rows.
type Signal struct {
	IdempotencyKey string
	Symbol         string
	Timeframe      string
	CloseTimeMs    int64
	Bias           string
	VegasState     string
	Payload        json.RawMessage
	CreatedAtMs    int64
}

// TradePlan is a signal promoted past the confirmation gate into an
// actionable entry/exit plan.
type TradePlan struct {
	IdempotencyKey  string
	PlanID          string
	Symbol          string
	Timeframe       string
	Side            string
	EntryPrice      float64
	PrimarySLPrice  float64
	TPRules         json.RawMessage
	SecondarySLRule json.RawMessage
	RiskPct         float64
	Status          string
	ValidFromMs     int64
	ExpiresAtMs     int64
	CreatedAtMs     int64
}

// Order is one exchange order the execution service submitted or is
// tracking, unique per (idempotency_key, purpose) so retries of the same
// logical order (entry, TP1, TP2, runner, stop) never double-submit.
type Order struct {
	OrderID         string
	IdempotencyKey  string
	Purpose         string
	Side            string
	OrderType       string
	Qty             float64
	Price           *float64
	ReduceOnly      bool
	Status          string
	ExchangeOrderID *string
	ExchangeLinkID  *string
	FilledQty       float64
	AvgPrice        *float64
	SubmittedAtMs   *int64
	RetryCount      int
	LastFillAtMs    *int64
	Payload         json.RawMessage
}

// Fill is one execution report against an order.
type Fill struct {
	ID         string
	OrderID    string
	ExecQty    float64
	ExecPrice  float64
	ExecFee    float64
	ExecTimeMs int64
}

// Position is the current (or most recently closed) state of a trade plan
// once it has at least one fill.
type Position struct {
	IdempotencyKey       string
	Symbol               string
	Timeframe            string
	Side                 string
	Bias                 string
	QtyTotal             float64
	QtyRunner            float64
	EntryPrice           float64
	PrimarySLPrice       float64
	RunnerStopPrice      *float64
	Status               string
	EntryCloseTimeMs     int64
	OpenedAtMs           int64
	ClosedAtMs           *int64
	ExitReason           *string
	SecondaryRuleChecked bool
	HistEntry            *float64
	Meta                 json.RawMessage
}

// RiskState is the one-row-per-trading-day equity/drawdown tracker the
// admission pipeline consults before allowing new entries.
type RiskState struct {
	TradeDate      string
	StartingEquity float64
	CurrentEquity  float64
	MinEquity      float64
	MaxEquity      float64
	DrawdownPct    float64
	SoftHalt       bool
	HardHalt       bool
	KillSwitch     bool
	Meta           json.RawMessage
}

// Cooldown blocks new entries on a (symbol, side, timeframe, reason) combo
// until UntilTsMs.
type Cooldown struct {
	Symbol    string
	Side      string
	Timeframe string
	Reason    string
	UntilTsMs int64
}

// RuntimeFlag is a simple named key/value operator control (e.g. the
// kill-switch toggle the API's admin endpoint flips).
type RuntimeFlag struct {
	Name      string
	Value     string
	UpdatedAt string
}

// Notification is one outbound message the notifier owns end-to-end,
// including retry bookkeeping for the persistent at-least-once send loop.
type Notification struct {
	EventID       string
	Stream        string
	MessageID     *string
	Severity      string
	Text          string
	Status        string
	Attempts      int
	NextAttemptAt *int64
	LastError     *string
}

// Trace is one stage marker in a trade's lifecycle, queryable by trace_id
// or idempotency_key for incident replay.
type Trace struct {
	ID             int64
	TraceID        string
	IdempotencyKey *string
	TsMs           int64
	Stage          string
	Detail         json.RawMessage
}

// AccountSnapshot/WalletSnapshot are periodic point-in-time captures of the
// exchange account/wallet state, kept for audit; reconciliation does not
// read them.
type AccountSnapshot struct {
	ID      int64
	Source  string
	TsMs    int64
	Payload json.RawMessage
}

type WalletSnapshot struct {
	ID      int64
	Source  string
	TsMs    int64
	Payload json.RawMessage
}
