package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "platform_"

	resultSuccess  = "success"
	resultError    = "error"
	resultNotFound = "not_found"
	resultSkipped  = "skipped"
)

var (
	registerOnce sync.Once

	reconcileTotal   *prometheus.CounterVec
	reconcileLatency *prometheus.HistogramVec

	hourlyRatesTotal   *prometheus.CounterVec
	hourlyRatesLatency *prometheus.HistogramVec

	recalcRowsTotal *prometheus.CounterVec
	recalcLatency   *prometheus.HistogramVec

	consumerMessagesTotal *prometheus.CounterVec
	consumerLag           *prometheus.GaugeVec
)

// Init registers collectors and DB-backed gauges. Safe to call more than once.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "energy_reconcile_total",
				Help: "Total energy reconciliation requests by view and result",
			},
			[]string{"view", "result"},
		)
		reconcileLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "energy_reconcile_latency_seconds",
				Help:    "Energy reconciliation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"view", "result"},
		)

		hourlyRatesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tariff_hourly_rates_total",
				Help: "Total hourly rate table requests by result",
			},
			[]string{"result"},
		)
		hourlyRatesLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tariff_hourly_rates_latency_seconds",
				Help:    "Hourly rate table latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		recalcRowsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_recalc_rows_total",
				Help: "Payment rows recomputed by trigger and result",
			},
			[]string{"trigger", "result"},
		)
		recalcLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "billing_recalc_latency_seconds",
				Help:    "Payment batch recomputation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		)

		consumerMessagesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "billing_consumer_messages_total",
				Help: "Upstream billing messages consumed by type and result",
			},
			[]string{"type", "result"},
		)
		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		prometheus.MustRegister(
			reconcileTotal,
			reconcileLatency,
			hourlyRatesTotal,
			hourlyRatesLatency,
			recalcRowsTotal,
			recalcLatency,
			consumerMessagesTotal,
			consumerLag,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveReconcile records a reconciliation view request.
func ObserveReconcile(view, result string, duration time.Duration) {
	if view == "" {
		view = "range"
	}
	if result == "" {
		result = resultSuccess
	}
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(view, result).Inc()
	}
	if reconcileLatency != nil {
		reconcileLatency.WithLabelValues(view, result).Observe(duration.Seconds())
	}
}

// ObserveHourlyRates records an hourly rate table request.
func ObserveHourlyRates(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if hourlyRatesTotal != nil {
		hourlyRatesTotal.WithLabelValues(result).Inc()
	}
	if hourlyRatesLatency != nil {
		hourlyRatesLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncRecalcRow counts one recomputed payment row.
func IncRecalcRow(trigger, result string) {
	if trigger == "" {
		trigger = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if recalcRowsTotal != nil {
		recalcRowsTotal.WithLabelValues(trigger, result).Inc()
	}
}

// ObserveRecalcBatch records a recomputation batch duration.
func ObserveRecalcBatch(trigger string, duration time.Duration) {
	if trigger == "" {
		trigger = "unknown"
	}
	if recalcLatency != nil {
		recalcLatency.WithLabelValues(trigger).Observe(duration.Seconds())
	}
}

// IncConsumerMessage counts one consumed upstream message.
func IncConsumerMessage(messageType, result string) {
	if messageType == "" {
		messageType = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if consumerMessagesTotal != nil {
		consumerMessagesTotal.WithLabelValues(messageType, result).Inc()
	}
}

// ObserveConsumerLag sets consumer lag in seconds.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumer == "" {
		consumer = "unknown"
	}
	if lag < 0 {
		lag = 0
	}
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultError    = resultError
	ResultNotFound = resultNotFound
	ResultSkipped  = resultSkipped
)
