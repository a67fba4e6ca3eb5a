package repository

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

const defaultOperationsLimit = 200

// BotOperationRepository appends to and reads the audit trail. It satisfies
// audit.Sink.
type BotOperationRepository struct {
	db *gorm.DB
}

func NewBotOperationRepository() *BotOperationRepository {
	logger.WithField("component", "BotOperationRepository").
		Info("Creating new BotOperationRepository with MainDB")

	return &BotOperationRepository{
		db: database.MainDB,
	}
}

func (r *BotOperationRepository) WithDB(db *gorm.DB) *BotOperationRepository {
	return &BotOperationRepository{db: db}
}

// Record inserts one audit row.
func (r *BotOperationRepository) Record(ctx context.Context, op *model.BotOperation) error {
	logger.WithFields(map[string]interface{}{
		"repo":    "BotOperationRepository",
		"op":      "Record",
		"user_id": op.UserID,
		"symbol":  op.StockSymbol,
		"stage":   op.Stage,
		"status":  op.Status,
	}).Debug(op.Reason)

	if err := r.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("insert bot operation: %w", err)
	}
	return nil
}

type BotOperationSearchOptions struct {
	Stage  *model.Stage
	Status *model.OperationStatus
	Since  *time.Time
	Limit  int
	Offset int
}

// ListByUser returns a user's operations newest first.
func (r *BotOperationRepository) ListByUser(
	ctx context.Context,
	userID uint,
	opts BotOperationSearchOptions,
) ([]model.BotOperation, error) {

	query := r.db.WithContext(ctx).
		Model(&model.BotOperation{}).
		Where("user_id = ?", userID)

	if opts.Stage != nil {
		query = query.Where("stage = ?", *opts.Stage)
	}
	if opts.Status != nil {
		query = query.Where("status = ?", *opts.Status)
	}
	if opts.Since != nil {
		query = query.Where("timestamp >= ?", *opts.Since)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultOperationsLimit
	}
	query = query.Order("timestamp DESC, id DESC").Limit(limit)
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	var ops []model.BotOperation
	if err := query.Find(&ops).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "BotOperationRepository",
			"op":      "ListByUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to list bot operations")
		return nil, err
	}

	return ops, nil
}
