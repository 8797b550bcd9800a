package statistic

import (
	"time"

	meter "prepaid-meter/internal/meter/domain"
)

// Aggregate summarizes readings with positive consumption.
type Aggregate struct {
	Window           Window  `json:"window"`
	TotalConsumption float64 `json:"total_consumption_kwh"`
	TotalCost        float64 `json:"total_cost"`
	AveragePerEntry  float64 `json:"average_per_entry_kwh"`
	PeakConsumption  float64 `json:"peak_consumption_kwh"`
	MinConsumption   float64 `json:"min_consumption_kwh"`
	Count            int     `json:"count"`
}

// HasData distinguishes an empty window from one that sums to zero.
func (a Aggregate) HasData() bool { return a.Count > 0 }

// Compute aggregates readings inside window. today is the current calendar day.
// Entries with zero consumption never count.
func Compute(readings []meter.Reading, window Window, today time.Time) Aggregate {
	agg := Aggregate{Window: window}
	start, bounded := window.Start(meter.Day(today))

	for _, r := range readings {
		if r.Consumption <= 0 {
			continue
		}
		if bounded && r.Date.Before(start) {
			continue
		}
		if agg.Count == 0 || r.Consumption > agg.PeakConsumption {
			agg.PeakConsumption = r.Consumption
		}
		if agg.Count == 0 || r.Consumption < agg.MinConsumption {
			agg.MinConsumption = r.Consumption
		}
		agg.TotalConsumption += r.Consumption
		agg.TotalCost += r.Cost
		agg.Count++
	}
	if agg.Count > 0 {
		agg.AveragePerEntry = agg.TotalConsumption / float64(agg.Count)
	}
	return agg
}
