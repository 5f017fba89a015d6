// Package metrics holds the Prometheus collectors for the bot.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Settlement results used as label values.
const (
	ResultWin               = "win"
	ResultLoss              = "loss"
	ResultInsufficientFunds = "insufficient_funds"
	ResultNoPrediction      = "no_prediction"
	ResultError             = "error"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	settlements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cricket_bot",
			Subsystem: "settlement",
			Name:      "total",
			Help:      "Total number of settlement attempts by result.",
		},
		[]string{"result"},
	)

	settlementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cricket_bot",
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Duration of settlements including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"result"},
	)

	settlementRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cricket_bot",
			Subsystem: "settlement",
			Name:      "retries_total",
			Help:      "Settlement transactions retried after a write conflict.",
		},
	)

	stakedCoins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cricket_bot",
			Subsystem: "settlement",
			Name:      "staked_coins_total",
			Help:      "Coins staked on settled predictions.",
		},
	)

	paidCoins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cricket_bot",
			Subsystem: "settlement",
			Name:      "paid_coins_total",
			Help:      "Coins paid out on winning predictions.",
		},
	)

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cricket_bot",
			Subsystem: "bot",
			Name:      "updates_total",
			Help:      "Chat updates handled by endpoint.",
		},
		[]string{"endpoint"},
	)

	rateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cricket_bot",
			Subsystem: "bot",
			Name:      "rate_limited_total",
			Help:      "Chat updates dropped by the per-user rate limiter.",
		},
	)
)

func init() {
	Registry.MustRegister(
		settlements,
		settlementDuration,
		settlementRetries,
		stakedCoins,
		paidCoins,
		commands,
		rateLimited,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSettlement records one settlement attempt.
func RecordSettlement(result string, stake, payout int64, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	settlements.WithLabelValues(result).Inc()
	settlementDuration.WithLabelValues(result).Observe(duration.Seconds())
	if result == ResultWin || result == ResultLoss {
		stakedCoins.Add(float64(stake))
		paidCoins.Add(float64(payout))
	}
}

// RecordRetry counts a retried settlement transaction.
func RecordRetry() {
	settlementRetries.Inc()
}

// RecordUpdate counts a handled chat update.
func RecordUpdate(endpoint string) {
	if endpoint == "" {
		endpoint = "unknown"
	}
	commands.WithLabelValues(endpoint).Inc()
}

// RecordRateLimited counts a dropped chat update.
func RecordRateLimited() {
	rateLimited.Inc()
}
