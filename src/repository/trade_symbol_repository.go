package repository

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
)

// TradeSymbolRepository reads the static symbol catalog. It defaults to the
// read-only connection.
type TradeSymbolRepository struct {
	db *gorm.DB
}

func NewTradeSymbolRepository() *TradeSymbolRepository {
	logger.WithField("component", "TradeSymbolRepository").
		Info("Creating new TradeSymbolRepository with ReadOnlyDB")

	return &TradeSymbolRepository{
		db: database.ReadOnlyDB,
	}
}

func (r *TradeSymbolRepository) WithDB(db *gorm.DB) *TradeSymbolRepository {
	return &TradeSymbolRepository{db: db}
}

// AllSymbols returns every catalog symbol ordered alphabetically.
func (r *TradeSymbolRepository) AllSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := r.db.WithContext(ctx).
		Model(&model.TradeSymbol{}).
		Order("symbol ASC").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("list catalog symbols: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "TradeSymbolRepository",
		"op":    "AllSymbols",
		"count": len(symbols),
	}).Debug("Loaded catalog")

	return symbols, nil
}

// SymbolsBySectors returns catalog symbols whose sector is one of sectors.
func (r *TradeSymbolRepository) SymbolsBySectors(ctx context.Context, sectors []string) ([]string, error) {
	if len(sectors) == 0 {
		return nil, nil
	}

	var symbols []string
	err := r.db.WithContext(ctx).
		Model(&model.TradeSymbol{}).
		Where("sector IN ?", sectors).
		Order("symbol ASC").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("list symbols by sector: %w", err)
	}

	return symbols, nil
}

// Create inserts a catalog row.
func (r *TradeSymbolRepository) Create(ctx context.Context, s *model.TradeSymbol) error {
	return r.db.WithContext(ctx).Create(s).Error
}
