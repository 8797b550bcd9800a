package sqlite

import (
	"time"

	meter "prepaid-meter/internal/meter/domain"
)

// StoredReading is the sqlite row for a meter reading.
type StoredReading struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Position    int       `gorm:"column:position;not null;index"`
	Date        time.Time `gorm:"column:date;not null"`
	RawValue    float64   `gorm:"column:reading;not null"`
	Consumption float64   `gorm:"column:consumption;not null"`
	Cost        float64   `gorm:"column:cost;not null"`
}

func (StoredReading) TableName() string { return "meter_readings" }

// StoredRecharge is the sqlite row for a recharge.
type StoredRecharge struct {
	ID       string    `gorm:"column:id;primaryKey"`
	Position int       `gorm:"column:position;not null;index"`
	Date     time.Time `gorm:"column:date;not null"`
	Amount   float64   `gorm:"column:amount;not null"`
	Units    float64   `gorm:"column:units;not null"`
	Rate     float64   `gorm:"column:rate;not null"`
}

func (StoredRecharge) TableName() string { return "meter_recharges" }

// StoredSettings is the single settings row.
type StoredSettings struct {
	ID         int     `gorm:"column:id;primaryKey"`
	PlanID     string  `gorm:"column:tariff_plan;not null"`
	TaxPercent float64 `gorm:"column:tva;not null"`
	Credit     float64 `gorm:"column:current_credit;not null"`
	Theme      string  `gorm:"column:theme;not null"`
	UpdatedAt  time.Time
}

func (StoredSettings) TableName() string { return "meter_settings" }

const settingsRowID = 1

func newStoredReading(position int, r meter.Reading) StoredReading {
	return StoredReading{
		ID:          r.ID,
		Position:    position,
		Date:        r.Date.UTC(),
		RawValue:    r.RawValue,
		Consumption: r.Consumption,
		Cost:        r.Cost,
	}
}

func (s StoredReading) toDomain() meter.Reading {
	return meter.Reading{
		ID:          s.ID,
		Date:        meter.Day(s.Date.UTC()),
		RawValue:    s.RawValue,
		Consumption: s.Consumption,
		Cost:        s.Cost,
	}
}

func newStoredRecharge(position int, r meter.Recharge) StoredRecharge {
	return StoredRecharge{
		ID:       r.ID,
		Position: position,
		Date:     r.Date.UTC(),
		Amount:   r.Amount,
		Units:    r.Units,
		Rate:     r.Rate,
	}
}

func (s StoredRecharge) toDomain() meter.Recharge {
	return meter.Recharge{
		ID:     s.ID,
		Date:   meter.Day(s.Date.UTC()),
		Amount: s.Amount,
		Units:  s.Units,
		Rate:   s.Rate,
	}
}

func newStoredSettings(s meter.Settings) StoredSettings {
	return StoredSettings{
		ID:         settingsRowID,
		PlanID:     s.PlanID,
		TaxPercent: s.TaxPercent,
		Credit:     s.Credit.Balance(),
		Theme:      string(s.Theme),
	}
}

func (s StoredSettings) toDomain() meter.Settings {
	return meter.Settings{
		PlanID:     s.PlanID,
		TaxPercent: s.TaxPercent,
		Credit:     meter.NewCreditTracker(s.Credit),
		Theme:      meter.Theme(s.Theme),
	}
}
