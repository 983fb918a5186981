// Package config loads environment-driven settings shared across services.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting the system uses. Each
// service only reads the fields relevant to it.
type Config struct {
	Env     string
	Service string

	// Connection
	DatabaseURL         string
	RedisURL            string
	RedisStreamGroup    string
	RedisStreamConsumer string

	// Exchange
	BybitAPIKey       string
	BybitAPISecret    string
	BybitRESTBaseURL  string
	BybitWSPublicURL  string
	BybitWSPrivateURL string
	BybitCategory     string
	BybitRecvWindow   int64
	BybitPositionIdx  int

	// Rate limiter
	PublicRPS               float64
	PublicBurst             int
	PrivateCriticalRPS      float64
	PrivateCriticalBurst    int
	PrivateOrderQueryRPS    float64
	PrivateOrderQueryBurst  int
	PrivateAccountQueryRPS  float64
	PrivateAccountQueryBurst int
	RateLimitMaxWaitMs      int

	// Market data
	Symbols []string

	// Strategy
	MinConfirmations int
	AutoTimeframes   []string
	MonitorTimeframes []string

	// Risk
	RiskPct               float64
	MaxOpenPositionsDefault int
	DailyDrawdownSoftPct  float64
	DailyDrawdownHardPct  float64
	KillSwitchForceOn     bool

	// Execution
	ExecutionMode    string // LIVE, PAPER, BACKTEST
	RunnerTrailMode  string // ATR, PIVOT
	RunnerATRPeriod  int
	RunnerATRMult    float64
	PaperEquity      float64

	// Cooldown
	CooldownEnabled bool
	CooldownBars1h  int
	CooldownBars4h  int
	CooldownBars1d  int

	// Entry-order abnormal handling
	EntryOrderType            string
	EntryTimeoutMs            int
	EntryPartialFillTimeoutMs int
	EntryMaxRetries           int
	EntryRepriceBps           float64
	EntryFallbackMarket       bool

	LockTTLMs             int
	KillSwitchWindowHours int

	// API
	HTTPPort          string
	JWTSecret         string
	AdminPasswordHash string

	// Ambient per-service diagnostics (every binary, not just internal/api)
	MetricsPort string

	// Notifier
	MessengerWebhookURL string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:     getEnv("ENV", "dev"),
		Service: getEnv("SERVICE_NAME", "unknown"),

		DatabaseURL:         getEnv("DATABASE_URL", "postgres://localhost:5432/macd3?sslmode=disable"),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisStreamGroup:    getEnv("REDIS_STREAM_GROUP", "macd3-workers"),
		RedisStreamConsumer: getEnv("REDIS_STREAM_CONSUMER", hostnameOrDefault()),

		BybitAPIKey:       getEnv("BYBIT_API_KEY", ""),
		BybitAPISecret:    getEnv("BYBIT_API_SECRET", ""),
		BybitRESTBaseURL:  getEnv("BYBIT_REST_BASE_URL", "https://api.bybit.com"),
		BybitWSPublicURL:  getEnv("BYBIT_WS_PUBLIC_URL", "wss://stream.bybit.com/v5/public/linear"),
		BybitWSPrivateURL: getEnv("BYBIT_WS_PRIVATE_URL", "wss://stream.bybit.com/v5/private"),
		BybitCategory:     getEnv("BYBIT_CATEGORY", "linear"),
		BybitRecvWindow:   getEnvInt64("BYBIT_RECV_WINDOW", 5000),
		BybitPositionIdx:  getEnvInt("BYBIT_POSITION_IDX", 0),

		PublicRPS:                getEnvFloat("BYBIT_PUBLIC_RPS", 10),
		PublicBurst:              getEnvInt("BYBIT_PUBLIC_BURST", 20),
		PrivateCriticalRPS:       getEnvFloat("BYBIT_PRIVATE_CRITICAL_RPS", 5),
		PrivateCriticalBurst:     getEnvInt("BYBIT_PRIVATE_CRITICAL_BURST", 10),
		PrivateOrderQueryRPS:     getEnvFloat("BYBIT_PRIVATE_ORDER_QUERY_RPS", 5),
		PrivateOrderQueryBurst:   getEnvInt("BYBIT_PRIVATE_ORDER_QUERY_BURST", 10),
		PrivateAccountQueryRPS:   getEnvFloat("BYBIT_PRIVATE_ACCOUNT_QUERY_RPS", 2),
		PrivateAccountQueryBurst: getEnvInt("BYBIT_PRIVATE_ACCOUNT_QUERY_BURST", 5),
		RateLimitMaxWaitMs:       getEnvInt("BYBIT_RATE_LIMIT_MAX_WAIT_MS", 5000),

		Symbols: getEnvList("SYMBOLS", []string{"BTCUSDT", "ETHUSDT"}),

		MinConfirmations:  getEnvInt("MIN_CONFIRMATIONS", 2),
		AutoTimeframes:    getEnvList("AUTO_TIMEFRAMES", []string{"1h", "4h", "1d"}),
		MonitorTimeframes: getEnvList("MONITOR_TIMEFRAMES", []string{"15m", "30m", "8h"}),

		RiskPct:                 getEnvFloat("RISK_PCT", 0.005),
		MaxOpenPositionsDefault: getEnvInt("MAX_OPEN_POSITIONS_DEFAULT", 3),
		DailyDrawdownSoftPct:    getEnvFloat("DAILY_DRAWDOWN_SOFT_PCT", 0.02),
		DailyDrawdownHardPct:    getEnvFloat("DAILY_DRAWDOWN_HARD_PCT", 0.04),
		KillSwitchForceOn:       getEnv("ACCOUNT_KILL_SWITCH_FORCE_ON", "false") == "true",

		ExecutionMode:   strings.ToUpper(getEnv("EXECUTION_MODE", "PAPER")),
		RunnerTrailMode: strings.ToUpper(getEnv("RUNNER_TRAIL_MODE", "ATR")),
		RunnerATRPeriod: getEnvInt("RUNNER_ATR_PERIOD", 14),
		RunnerATRMult:   getEnvFloat("RUNNER_ATR_MULT", 3.0),
		PaperEquity:     getEnvFloat("PAPER_EQUITY", 10000),

		CooldownEnabled: getEnv("COOLDOWN_ENABLED", "true") == "true",
		CooldownBars1h:  getEnvInt("COOLDOWN_BARS_1H", 2),
		CooldownBars4h:  getEnvInt("COOLDOWN_BARS_4H", 1),
		CooldownBars1d:  getEnvInt("COOLDOWN_BARS_1D", 1),

		EntryOrderType:            strings.ToUpper(getEnv("EXECUTION_ENTRY_ORDER_TYPE", "MARKET")),
		EntryTimeoutMs:            getEnvInt("EXECUTION_ENTRY_TIMEOUT_MS", 15000),
		EntryPartialFillTimeoutMs: getEnvInt("EXECUTION_ENTRY_PARTIAL_FILL_TIMEOUT_MS", 20000),
		EntryMaxRetries:           getEnvInt("EXECUTION_ENTRY_MAX_RETRIES", 2),
		EntryRepriceBps:           getEnvFloat("EXECUTION_ENTRY_REPRICE_BPS", 5),
		EntryFallbackMarket:       getEnv("EXECUTION_ENTRY_FALLBACK_MARKET", "true") == "true",

		LockTTLMs:             getEnvInt("EXECUTION_LOCK_TTL_MS", 10000),
		KillSwitchWindowHours: getEnvInt("EXECUTION_KILL_SWITCH_WINDOW_HOURS", 24),

		HTTPPort:          getEnv("PORT", "8080"),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		MetricsPort:       getEnv("METRICS_PORT", "9090"),

		MessengerWebhookURL: getEnv("MESSENGER_WEBHOOK_URL", ""),
	}
	return cfg, nil
}

// CooldownBars returns the configured cooldown bar count for a timeframe.
func (c *Config) CooldownBars(timeframe string) int {
	switch timeframe {
	case "1h":
		return c.CooldownBars1h
	case "4h":
		return c.CooldownBars4h
	case "1d":
		return c.CooldownBars1d
	default:
		return 0
	}
}

// MaxWait returns the rate-limiter max-wait duration.
func (c *Config) MaxWait() time.Duration {
	return time.Duration(c.RateLimitMaxWaitMs) * time.Millisecond
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "consumer-1"
	}
	return h
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
