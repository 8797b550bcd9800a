package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	meter "prepaid-meter/internal/meter/domain"
)

//go:embed schema.sql
var schema string

const settingsRowID = 1

// Store persists the meter state in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the meter and audit tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("meter store: nil db")
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Load reads the stored state. ok is false when no settings row exists yet.
func (s *Store) Load(ctx context.Context) (meter.State, bool, error) {
	if s == nil || s.db == nil {
		return meter.State{}, false, errors.New("meter store: nil db")
	}

	var (
		planID string
		tax    float64
		credit float64
		theme  string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT tariff_plan, tva, current_credit, theme
FROM meter_settings
WHERE id = $1`, settingsRowID).Scan(&planID, &tax, &credit, &theme)
	if errors.Is(err, sql.ErrNoRows) {
		return meter.State{}, false, nil
	}
	if err != nil {
		return meter.State{}, false, fmt.Errorf("load settings: %w", err)
	}

	readings, err := s.loadReadings(ctx)
	if err != nil {
		return meter.State{}, false, err
	}
	recharges, err := s.loadRecharges(ctx)
	if err != nil {
		return meter.State{}, false, err
	}
	return meter.State{
		Readings:  readings,
		Recharges: recharges,
		Settings: meter.Settings{
			PlanID:     planID,
			TaxPercent: tax,
			Credit:     meter.NewCreditTracker(credit),
			Theme:      meter.Theme(theme),
		},
	}, true, nil
}

func (s *Store) loadReadings(ctx context.Context) ([]meter.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, reading_date, reading, consumption, cost
FROM meter_readings
ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load readings: %w", err)
	}
	defer rows.Close()

	result := make([]meter.Reading, 0)
	for rows.Next() {
		var (
			r    meter.Reading
			date time.Time
		)
		if err := rows.Scan(&r.ID, &date, &r.RawValue, &r.Consumption, &r.Cost); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Date = meter.Day(date)
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *Store) loadRecharges(ctx context.Context) ([]meter.Recharge, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, recharge_date, amount, units, rate
FROM meter_recharges
ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load recharges: %w", err)
	}
	defer rows.Close()

	result := make([]meter.Recharge, 0)
	for rows.Next() {
		var (
			r    meter.Recharge
			date time.Time
		)
		if err := rows.Scan(&r.ID, &date, &r.Amount, &r.Units, &r.Rate); err != nil {
			return nil, fmt.Errorf("scan recharge: %w", err)
		}
		r.Date = meter.Day(date)
		result = append(result, r)
	}
	return result, rows.Err()
}

// Save replaces the stored state in one transaction.
func (s *Store) Save(ctx context.Context, state meter.State) error {
	if s == nil || s.db == nil {
		return errors.New("meter store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveTx(ctx, tx, state); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func saveTx(ctx context.Context, tx *sql.Tx, state meter.State) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM meter_readings`); err != nil {
		return fmt.Errorf("clear readings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM meter_recharges`); err != nil {
		return fmt.Errorf("clear recharges: %w", err)
	}
	for i, r := range state.Readings {
		_, err := tx.ExecContext(ctx, `
INSERT INTO meter_readings (id, position, reading_date, reading, consumption, cost)
VALUES ($1,$2,$3,$4,$5,$6)`,
			r.ID, i, r.Date, r.RawValue, r.Consumption, r.Cost)
		if err != nil {
			return fmt.Errorf("insert reading %s: %w", r.ID, err)
		}
	}
	for i, r := range state.Recharges {
		_, err := tx.ExecContext(ctx, `
INSERT INTO meter_recharges (id, position, recharge_date, amount, units, rate)
VALUES ($1,$2,$3,$4,$5,$6)`,
			r.ID, i, r.Date, r.Amount, r.Units, r.Rate)
		if err != nil {
			return fmt.Errorf("insert recharge %s: %w", r.ID, err)
		}
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO meter_settings (id, tariff_plan, tva, current_credit, theme, updated_at)
VALUES ($1,$2,$3,$4,$5,now())
ON CONFLICT (id) DO UPDATE SET
	tariff_plan = EXCLUDED.tariff_plan,
	tva = EXCLUDED.tva,
	current_credit = EXCLUDED.current_credit,
	theme = EXCLUDED.theme,
	updated_at = now()`,
		settingsRowID, state.Settings.PlanID, state.Settings.TaxPercent, state.Settings.Credit.Balance(), string(state.Settings.Theme))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
