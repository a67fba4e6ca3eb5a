package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

// ExceptionRepository persists failures caught at the run boundary.
type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{
		db: database.MainDB,
	}
}

func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	logger.WithFields(map[string]interface{}{
		"user_id": exc.UserID,
		"service": exc.Service,
		"method":  exc.Method,
		"level":   exc.Level,
	}).Error("Persisting run exception")

	return r.db.WithContext(ctx).Create(exc).Error
}

// ListByUser returns the newest exceptions for userID, at most limit rows.
func (r *ExceptionRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.Exception, error) {
	if limit <= 0 {
		limit = 50
	}

	var out []model.Exception
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
