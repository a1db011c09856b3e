package migrations

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DataMigration tracks executed data migrations.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

// RunOnce applies fn inside a transaction unless id is already recorded in
// data_migrations. The record is written in the same transaction as fn.
func RunOnce(db *gorm.DB, id string, fn func(*gorm.DB) error) error {
	switch {
	case db == nil:
		return nil
	case id == "":
		return errors.New("migration id is empty")
	case fn == nil:
		return fmt.Errorf("migration %s: no function", id)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		done, err := applied(tx, id)
		if err != nil || done {
			return err
		}
		if err := fn(tx); err != nil {
			return fmt.Errorf("migration %s: %w", id, err)
		}
		return tx.Create(&DataMigration{ID: id, AppliedAt: time.Now().UTC()}).Error
	})
}

func applied(tx *gorm.DB, id string) (bool, error) {
	var count int64
	if err := tx.Model(&DataMigration{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("migration %s: lookup: %w", id, err)
	}
	return count > 0, nil
}

// Run executes the data migrations that go beyond AutoMigrate.
// Append new migrations at the bottom with a stable unique id.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	if err := RunOnce(db, "00001_trigger_events_order_time_index", createTriggerEventOrderIndex); err != nil {
		return err
	}
	return nil
}

// createTriggerEventOrderIndex backs the per-order history query.
func createTriggerEventOrderIndex(db *gorm.DB) error {
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_trigger_events_order_time ON trigger_events (order_id, created_at)`).Error
}
