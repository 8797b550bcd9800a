package statistic

import (
	"time"

	meter "prepaid-meter/internal/meter/domain"
)

// MonthSummary is the dashboard view of the current calendar month.
type MonthSummary struct {
	Month            string  `json:"month"`
	TotalConsumption float64 `json:"total_consumption_kwh"`
	TotalCost        float64 `json:"total_cost"`
	AveragePerEntry  float64 `json:"average_per_entry_kwh"`
	Count            int     `json:"count"`
}

// SummarizeMonth aggregates readings with positive consumption dated in now's month.
func SummarizeMonth(readings []meter.Reading, now time.Time) MonthSummary {
	year, month, _ := now.Date()
	summary := MonthSummary{Month: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")}
	for _, r := range readings {
		if r.Consumption <= 0 {
			continue
		}
		if r.Date.Year() != year || r.Date.Month() != month {
			continue
		}
		summary.TotalConsumption += r.Consumption
		summary.TotalCost += r.Cost
		summary.Count++
	}
	if summary.Count > 0 {
		summary.AveragePerEntry = summary.TotalConsumption / float64(summary.Count)
	}
	return summary
}

// Point is one chart sample.
type Point struct {
	Date        string  `json:"date"`
	Consumption float64 `json:"consumption_kwh"`
	Cost        float64 `json:"cost"`
}

// Series returns the last limit readings with positive consumption, oldest first.
// A non-positive limit returns all of them.
func Series(readings []meter.Reading, limit int) []Point {
	points := make([]Point, 0, len(readings))
	for _, r := range readings {
		if r.Consumption <= 0 {
			continue
		}
		points = append(points, Point{Date: meter.FormatDate(r.Date), Consumption: r.Consumption, Cost: r.Cost})
	}
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return points
}
