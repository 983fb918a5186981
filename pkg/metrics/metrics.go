// Package metrics builds prometheus/client_golang collectors, registered
// per service and served on /metrics alongside each service's health
// endpoints.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups every collector a service registers. Each service
// constructs its own Registry with its own prometheus.Registerer so
// process-level metrics don't collide across the five binaries.
type Registry struct {
	OrderLatencyMs    *prometheus.HistogramVec
	DBQueryLatencyMs  *prometheus.HistogramVec
	StrategyLatencyMs prometheus.Histogram

	BarsProcessed       *prometheus.CounterVec
	SignalsGenerated    *prometheus.CounterVec
	OrdersSubmitted     *prometheus.CounterVec
	OrdersRejected      *prometheus.CounterVec
	RiskEventsEmitted   *prometheus.CounterVec
	NotificationsSent   *prometheus.CounterVec
	DLQMessages         prometheus.Counter
	StreamConsumeErrors *prometheus.CounterVec

	OpenPositions  prometheus.Gauge
	KillSwitchOn   prometheus.Gauge
	StreamLag      *prometheus.GaugeVec
	RateLimitUsage *prometheus.GaugeVec
}

// New builds and registers every collector against reg.
func New(service string, reg prometheus.Registerer) *Registry {
	f := promauto(reg)
	m := &Registry{
		OrderLatencyMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "order_latency_ms", Help: "Exchange order round-trip latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 12),
		}, []string{"endpoint"}),
		DBQueryLatencyMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "db_query_latency_ms", Help: "Postgres query latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"query"}),
		StrategyLatencyMs: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "strategy_eval_latency_ms", Help: "Time to evaluate one closed bar through the strategy pipeline.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		BarsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "bars_processed_total", Help: "Closed bars processed.",
		}, []string{"symbol", "timeframe"}),
		SignalsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "signals_generated_total", Help: "Signals emitted.",
		}, []string{"symbol", "timeframe", "bias"}),
		OrdersSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "orders_submitted_total", Help: "Orders submitted to the exchange.",
		}, []string{"symbol", "purpose"}),
		OrdersRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "orders_rejected_total", Help: "Plans rejected at admission.",
		}, []string{"symbol", "reason"}),
		RiskEventsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "risk_events_total", Help: "risk_event messages emitted.",
		}, []string{"type", "severity"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "notifications_sent_total", Help: "Outbound notification attempts.",
		}, []string{"status"}),
		DLQMessages: f.NewCounter(prometheus.CounterOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "dlq_messages_total", Help: "Messages published to the dead-letter stream.",
		}),
		StreamConsumeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "stream_consume_errors_total", Help: "Errors decoding/handling a stream message.",
		}, []string{"stream"}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "open_positions", Help: "Currently OPEN positions.",
		}),
		KillSwitchOn: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "kill_switch_on", Help: "1 if the kill switch is engaged.",
		}),
		StreamLag: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "stream_lag", Help: "Consumer group lag per stream.",
		}, []string{"stream"}),
		RateLimitUsage: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "macd3", Subsystem: service,
			Name: "rate_limit_usage_ratio", Help: "Used/limit ratio per rate-limit bucket.",
		}, []string{"group"}),
	}
	return m
}

// factory is a tiny auto-registering helper so New reads declaratively
// instead of repeating "reg.MustRegister(x); return x" per collector.
type factory struct{ reg prometheus.Registerer }

func promauto(reg prometheus.Registerer) factory { return factory{reg: reg} }

func (f factory) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.reg.MustRegister(c)
	return c
}

func (f factory) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	f.reg.MustRegister(c)
	return c
}

func (f factory) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	g := prometheus.NewGaugeVec(opts, labels)
	f.reg.MustRegister(g)
	return g
}

func (f factory) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.reg.MustRegister(g)
	return g
}

func (f factory) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(opts, labels)
	f.reg.MustRegister(h)
	return h
}

func (f factory) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	f.reg.MustRegister(h)
	return h
}
