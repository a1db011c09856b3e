package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradesim/src/database"
	"tradesim/src/model"
)

// TriggerEventRepository persists the engine's trigger journal.
type TriggerEventRepository struct {
	db *gorm.DB
}

func NewTriggerEventRepository() *TriggerEventRepository {
	return &TriggerEventRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *TriggerEventRepository) WithDB(db *gorm.DB) *TriggerEventRepository {
	return &TriggerEventRepository{db: db}
}

// CreateBatch inserts events in one statement.
func (r *TriggerEventRepository) CreateBatch(ctx context.Context, events []model.TriggerEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&events).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TriggerEventRepository",
			"op":     "CreateBatch",
			"events": len(events),
		}).WithError(err).Error("Failed to persist trigger events")
		return err
	}
	return nil
}

// ListByOrder returns the journal of one order, oldest first.
func (r *TriggerEventRepository) ListByOrder(ctx context.Context, orderID string) ([]model.TriggerEvent, error) {
	var events []model.TriggerEvent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TriggerEventRepository",
			"op":       "ListByOrder",
			"order_id": orderID,
		}).WithError(err).Error("Failed to list trigger events")
		return nil, err
	}
	return events, nil
}
