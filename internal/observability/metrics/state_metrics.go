package metrics

import (
	"log"
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

// StateSource exposes ledger figures for gauges.
type StateSource interface {
	CreditBalance() float64
	ReadingCount() int
	RechargeCount() int
}

func registerStateMetrics(source StateSource, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "credit_balance_kwh",
			Help: "Current prepaid credit balance in kWh",
		},
		func() float64 {
			return sanitize(source.CreditBalance(), logger, "credit_balance_kwh")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "readings",
			Help: "Meter readings in the ledger",
		},
		func() float64 {
			return float64(source.ReadingCount())
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "recharges",
			Help: "Recharges in the ledger",
		},
		func() float64 {
			return float64(source.RechargeCount())
		},
	))
}

func sanitize(value float64, logger *log.Logger, name string) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		if logger != nil {
			logger.Printf("metrics %s out of range: %v", name, value)
		}
		return 0
	}
	return value
}
