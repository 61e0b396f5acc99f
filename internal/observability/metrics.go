// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Chain metrics
	RPCCallLatency  *prometheus.HistogramVec
	HeadsReceived   prometheus.Counter
	LatestHeadBlock prometheus.Gauge

	// Pricing metrics
	PriceQuotes      *prometheus.CounterVec
	PriceFetchErrors prometheus.Counter
	LastPriceUSD     *prometheus.GaugeVec

	// Payment metrics
	PaymentsTotal       *prometheus.CounterVec
	ConfirmationLatency prometheus.Histogram
	BalanceChecks       *prometheus.CounterVec

	// Chat metrics
	MessagesTotal   *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Exchanges       prometheus.Counter
	ChatCost        *prometheus.GaugeVec
	ReplyLatency    prometheus.Histogram
	ReplyTimeouts   prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPRequestTime *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "paidchat"
	}

	return &Metrics{
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_call_latency_seconds",
			Help:      "EVM RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		HeadsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "heads_received_total",
			Help:      "Total number of new block headers received",
		}),
		LatestHeadBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "latest_head_block",
			Help:      "Latest block number seen on the head subscription",
		}),

		PriceQuotes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "quotes_total",
			Help:      "Total number of price quotes served by tier",
		}, []string{"symbol", "tier"}),
		PriceFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed price source fetches",
		}),
		LastPriceUSD: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "last_price_usd",
			Help:      "Last fetched USD price by coin",
		}, []string{"coin"}),

		PaymentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "payments_total",
			Help:      "Total number of payments by outcome",
		}, []string{"outcome"}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to confirmation in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),
		BalanceChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "balance_checks_total",
			Help:      "Total number of balance checks by result",
		}, []string{"result"}),

		MessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Total number of send attempts by outcome",
		}, []string{"outcome"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "state_transitions_total",
			Help:      "Total number of submission state transitions by target state",
		}, []string{"state"}),
		Exchanges: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "exchanges_total",
			Help:      "Total number of completed user/agent exchanges",
		}),
		ChatCost: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "cost_multiplier",
			Help:      "Current chat cost multiplier by agent",
		}, []string{"agent"}),
		ReplyLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "reply_latency_seconds",
			Help:      "Agent reply generation latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}),
		ReplyTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "reply_timeouts_total",
			Help:      "Total number of replies replaced by the timeout refusal",
		}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPRequestTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordHead records a new block header.
func RecordHead(number uint64) {
	DefaultMetrics.HeadsReceived.Inc()
	DefaultMetrics.LatestHeadBlock.Set(float64(number))
}

// RecordPriceQuote records which tier served a quote.
func RecordPriceQuote(symbol, tier string) {
	DefaultMetrics.PriceQuotes.WithLabelValues(symbol, tier).Inc()
}

// RecordPriceFetch records a price source fetch result.
func RecordPriceFetch(prices map[string]float64, err error) {
	if err != nil {
		DefaultMetrics.PriceFetchErrors.Inc()
		return
	}
	for coin, usd := range prices {
		DefaultMetrics.LastPriceUSD.WithLabelValues(coin).Set(usd)
	}
}

// RecordPayment records a payment outcome and, when confirmed, its latency.
func RecordPayment(outcome string, confirmSeconds float64) {
	DefaultMetrics.PaymentsTotal.WithLabelValues(outcome).Inc()
	if confirmSeconds > 0 {
		DefaultMetrics.ConfirmationLatency.Observe(confirmSeconds)
	}
}

// RecordBalanceCheck records a balance sufficiency check.
func RecordBalanceCheck(sufficient bool) {
	result := "insufficient"
	if sufficient {
		result = "sufficient"
	}
	DefaultMetrics.BalanceChecks.WithLabelValues(result).Inc()
}

// RecordMessage records the terminal outcome of a send attempt.
func RecordMessage(outcome string) {
	DefaultMetrics.MessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordTransition records a submission state transition.
func RecordTransition(state string) {
	DefaultMetrics.Transitions.WithLabelValues(state).Inc()
}

// RecordExchange records a completed exchange on the service side.
func RecordExchange() {
	DefaultMetrics.Exchanges.Inc()
}

// UpdateChatCost sets the cost multiplier gauge for an agent.
func UpdateChatCost(agentID string, multiplier float64) {
	DefaultMetrics.ChatCost.WithLabelValues(agentID).Set(multiplier)
}

// RecordReply records reply generation latency.
func RecordReply(seconds float64, timedOut bool) {
	DefaultMetrics.ReplyLatency.Observe(seconds)
	if timedOut {
		DefaultMetrics.ReplyTimeouts.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(route, status string, seconds float64) {
	DefaultMetrics.HTTPRequests.WithLabelValues(route, status).Inc()
	DefaultMetrics.HTTPRequestTime.WithLabelValues(route).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
