package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "meter_"

	resultSuccess  = "success"
	resultRejected = "rejected"
	resultError    = "error"
)

var (
	registerOnce sync.Once

	operationTotal   *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	persistErrors prometheus.Counter

	notificationsTotal *prometheus.CounterVec

	tariffReloads *prometheus.CounterVec
)

// Init registers the service metrics. source may be nil.
func Init(source StateSource, logger *log.Logger) {
	registerOnce.Do(func() {
		operationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "operations_total",
				Help: "Total ledger operations by operation and result",
			},
			[]string{"operation", "result"},
		)
		operationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_latency_seconds",
				Help:    "Ledger operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)
		persistErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "persist_errors_total",
				Help: "Total store save failures",
			},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total low credit notifications by result",
			},
			[]string{"result"},
		)
		tariffReloads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "tariff_reloads_total",
				Help: "Total tariff file reloads by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			operationTotal,
			operationLatency,
			exportTotal,
			exportLatency,
			persistErrors,
			notificationsTotal,
			tariffReloads,
		)

		if source != nil {
			registerStateMetrics(source, logger)
		}
	})
}

// ResultOf maps an operation error to a result label.
func ResultOf(err error, rejected func(error) bool) string {
	switch {
	case err == nil:
		return resultSuccess
	case rejected != nil && rejected(err):
		return resultRejected
	default:
		return resultError
	}
}

// ObserveOperation records an operation duration and result.
func ObserveOperation(operation, result string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if operationTotal != nil {
		operationTotal.WithLabelValues(operation, result).Inc()
	}
	if operationLatency != nil {
		operationLatency.WithLabelValues(operation, result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncPersistError increments the store failure counter.
func IncPersistError() {
	if persistErrors != nil {
		persistErrors.Inc()
	}
}

// IncNotification increments the notification counter.
func IncNotification(result string) {
	if result == "" {
		result = "unknown"
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(result).Inc()
	}
}

// IncTariffReload increments the tariff reload counter.
func IncTariffReload(result string) {
	if result == "" {
		result = "unknown"
	}
	if tariffReloads != nil {
		tariffReloads.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess  = resultSuccess
	ResultRejected = resultRejected
	ResultError    = resultError
)
