package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	meter "prepaid-meter/internal/meter/domain"
)

// Store persists the meter state to a local sqlite file.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&StoredReading{}, &StoredRecharge{}, &StoredSettings{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load reads the stored state. ok is false when no settings row exists yet.
func (s *Store) Load(ctx context.Context) (meter.State, bool, error) {
	db := s.db.WithContext(ctx)

	var settings StoredSettings
	err := db.First(&settings, settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return meter.State{}, false, nil
	}
	if err != nil {
		return meter.State{}, false, fmt.Errorf("load settings: %w", err)
	}

	var readings []StoredReading
	if err := db.Order("position asc").Find(&readings).Error; err != nil {
		return meter.State{}, false, fmt.Errorf("load readings: %w", err)
	}
	var recharges []StoredRecharge
	if err := db.Order("position asc").Find(&recharges).Error; err != nil {
		return meter.State{}, false, fmt.Errorf("load recharges: %w", err)
	}

	state := meter.State{
		Readings:  make([]meter.Reading, 0, len(readings)),
		Recharges: make([]meter.Recharge, 0, len(recharges)),
		Settings:  settings.toDomain(),
	}
	for _, r := range readings {
		state.Readings = append(state.Readings, r.toDomain())
	}
	for _, r := range recharges {
		state.Recharges = append(state.Recharges, r.toDomain())
	}
	return state, true, nil
}

// Save replaces the stored state in one transaction.
func (s *Store) Save(ctx context.Context, state meter.State) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&StoredReading{}).Error; err != nil {
			return fmt.Errorf("clear readings: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&StoredRecharge{}).Error; err != nil {
			return fmt.Errorf("clear recharges: %w", err)
		}
		if len(state.Readings) > 0 {
			rows := make([]StoredReading, 0, len(state.Readings))
			for i, r := range state.Readings {
				rows = append(rows, newStoredReading(i, r))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert readings: %w", err)
			}
		}
		if len(state.Recharges) > 0 {
			rows := make([]StoredRecharge, 0, len(state.Recharges))
			for i, r := range state.Recharges {
				rows = append(rows, newStoredRecharge(i, r))
			}
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert recharges: %w", err)
			}
		}
		settings := newStoredSettings(state.Settings)
		if err := tx.Save(&settings).Error; err != nil {
			return fmt.Errorf("save settings: %w", err)
		}
		return nil
	})
}
