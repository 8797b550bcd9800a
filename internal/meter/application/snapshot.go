package application

import (
	"encoding/json"
	"fmt"
	"time"

	meter "prepaid-meter/internal/meter/domain"
)

const (
	keyReadings  = "meterReadings"
	keyRecharges = "recharges"
	keySettings  = "settings"
)

type readingRecord struct {
	ID          string  `json:"id,omitempty"`
	Date        string  `json:"date"`
	Reading     float64 `json:"reading"`
	Consumption float64 `json:"consumption"`
	Cost        float64 `json:"cost"`
}

type rechargeRecord struct {
	ID     string  `json:"id,omitempty"`
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	Units  float64 `json:"units"`
	Rate   float64 `json:"rate"`
}

type settingsRecord struct {
	TariffPlan    string  `json:"tariffPlan"`
	TVA           float64 `json:"tva"`
	CurrentCredit float64 `json:"currentCredit"`
	Theme         string  `json:"theme,omitempty"`
}

type snapshotRecord struct {
	MeterReadings []readingRecord  `json:"meterReadings"`
	Recharges     []rechargeRecord `json:"recharges"`
	Settings      settingsRecord   `json:"settings"`
	ExportDate    string           `json:"exportDate"`
}

// EncodeSnapshot renders state as the structured export document.
func EncodeSnapshot(state meter.State, exportedAt time.Time) ([]byte, error) {
	doc := snapshotRecord{
		MeterReadings: make([]readingRecord, 0, len(state.Readings)),
		Recharges:     make([]rechargeRecord, 0, len(state.Recharges)),
		Settings: settingsRecord{
			TariffPlan:    state.Settings.PlanID,
			TVA:           state.Settings.TaxPercent,
			CurrentCredit: state.Settings.Credit.Balance(),
			Theme:         string(state.Settings.Theme),
		},
		ExportDate: exportedAt.UTC().Format(time.RFC3339),
	}
	for _, r := range state.Readings {
		doc.MeterReadings = append(doc.MeterReadings, readingRecord{
			ID:          r.ID,
			Date:        meter.FormatDate(r.Date),
			Reading:     r.RawValue,
			Consumption: r.Consumption,
			Cost:        r.Cost,
		})
	}
	for _, r := range state.Recharges {
		doc.Recharges = append(doc.Recharges, rechargeRecord{
			ID:     r.ID,
			Date:   meter.FormatDate(r.Date),
			Amount: r.Amount,
			Units:  r.Units,
			Rate:   r.Rate,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeSnapshot parses an export document. Derived fields are taken as-is;
// callers recompute them.
func DecodeSnapshot(data []byte) (meter.State, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return meter.State{}, fmt.Errorf("%w: %v", meter.ErrParse, err)
	}
	for _, key := range []string{keyReadings, keyRecharges, keySettings} {
		raw, ok := top[key]
		if !ok || string(raw) == "null" {
			return meter.State{}, fmt.Errorf("%w: missing %q", meter.ErrFormat, key)
		}
	}

	var readings []readingRecord
	if err := json.Unmarshal(top[keyReadings], &readings); err != nil {
		return meter.State{}, fmt.Errorf("%w: %s: %v", meter.ErrParse, keyReadings, err)
	}
	var recharges []rechargeRecord
	if err := json.Unmarshal(top[keyRecharges], &recharges); err != nil {
		return meter.State{}, fmt.Errorf("%w: %s: %v", meter.ErrParse, keyRecharges, err)
	}
	var settings settingsRecord
	if err := json.Unmarshal(top[keySettings], &settings); err != nil {
		return meter.State{}, fmt.Errorf("%w: %s: %v", meter.ErrParse, keySettings, err)
	}

	state := meter.State{
		Readings:  make([]meter.Reading, 0, len(readings)),
		Recharges: make([]meter.Recharge, 0, len(recharges)),
		Settings: meter.Settings{
			PlanID:     settings.TariffPlan,
			TaxPercent: settings.TVA,
			Credit:     meter.NewCreditTracker(settings.CurrentCredit),
			Theme:      meter.Theme(settings.Theme),
		},
	}
	for i, r := range readings {
		date, err := meter.ParseDate(r.Date)
		if err != nil {
			return meter.State{}, fmt.Errorf("%w: %s[%d]: %v", meter.ErrParse, keyReadings, i, err)
		}
		state.Readings = append(state.Readings, meter.Reading{
			ID:          r.ID,
			Date:        date,
			RawValue:    r.Reading,
			Consumption: r.Consumption,
			Cost:        r.Cost,
		})
	}
	for i, r := range recharges {
		date, err := meter.ParseDate(r.Date)
		if err != nil {
			return meter.State{}, fmt.Errorf("%w: %s[%d]: %v", meter.ErrParse, keyRecharges, i, err)
		}
		state.Recharges = append(state.Recharges, meter.Recharge{
			ID:     r.ID,
			Date:   date,
			Amount: r.Amount,
			Units:  r.Units,
			Rate:   r.Rate,
		})
	}
	return state, nil
}
