package symbols

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockbot/src/model"
)

var ErrMissingSymbolColumn = errors.New("csv header has no symbol column")

const maxSymbolLen = 10

// ImportStats counts what one import did.
type ImportStats struct {
	Upserted int
	Skipped  int
}

// SymbolImport loads the trade symbol catalog from a CSV file. Rows are
// matched on symbol, so re-importing a file refreshes the existing entries.
type SymbolImport struct {
	Log    *logger.Entry
	DB     *gorm.DB
	Config *Config
}

func (s *SymbolImport) Start(ctx context.Context) (ImportStats, error) {
	if s.Config == nil {
		s.Config = GetConfig()
	}

	f, err := os.Open(s.Config.File)
	if err != nil {
		s.Log.WithError(err).WithField("file", s.Config.File).Error("Failed to open symbols file")
		return ImportStats{}, err
	}
	defer f.Close()

	return s.Import(ctx, f)
}

// Import reads a CSV with a header row. Recognised columns are symbol, type,
// exchange, company_name, sector, industry and description, in any order.
func (s *SymbolImport) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	var stats ImportStats
	if s.Config == nil {
		s.Config = GetConfig()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return stats, fmt.Errorf("read csv header: %w", err)
	}
	cols := indexColumns(header)
	if _, ok := cols["symbol"]; !ok {
		return stats, ErrMissingSymbolColumn
	}

	batchSize := s.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 200
	}

	batch := make([]model.TradeSymbol, 0, batchSize)
	seen := map[string]int{}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return stats, fmt.Errorf("read csv line %d: %w", line, err)
		}

		row, ok := toTradeSymbol(cols, record)
		if !ok {
			stats.Skipped++
			s.Log.WithFields(logger.Fields{
				"line":   line,
				"record": record,
			}).Warn("Skipping symbol row")
			continue
		}

		// a symbol repeated inside one batch would hit the same row twice
		if i, dup := seen[row.Symbol]; dup {
			batch[i] = row
			continue
		}
		seen[row.Symbol] = len(batch)
		batch = append(batch, row)

		if len(batch) == batchSize {
			if err := s.upsert(ctx, batch); err != nil {
				return stats, err
			}
			stats.Upserted += len(batch)
			batch = batch[:0]
			seen = map[string]int{}
		}
	}

	if len(batch) > 0 {
		if err := s.upsert(ctx, batch); err != nil {
			return stats, err
		}
		stats.Upserted += len(batch)
	}

	s.Log.WithFields(logger.Fields{
		"upserted": stats.Upserted,
		"skipped":  stats.Skipped,
	}).Info("Symbol catalog imported")

	return stats, nil
}

func (s *SymbolImport) upsert(ctx context.Context, batch []model.TradeSymbol) error {
	// Upsert: on conflict on symbol do update
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "description", "exchange", "company_name", "sector", "industry"}),
	}).Create(&batch).Error; err != nil {
		s.Log.WithError(err).Error("upsert, Create, ")
		return err
	}
	return nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if key == "ticker" {
			key = "symbol"
		}
		if _, ok := cols[key]; !ok {
			cols[key] = i
		}
	}
	return cols
}

func toTradeSymbol(cols map[string]int, record []string) (model.TradeSymbol, bool) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	symbol := strings.ToUpper(get("symbol"))
	if symbol == "" || len(symbol) > maxSymbolLen {
		return model.TradeSymbol{}, false
	}

	return model.TradeSymbol{
		Symbol:      symbol,
		Type:        assetType(get("type")),
		Description: get("description"),
		Exchange:    get("exchange"),
		CompanyName: get("company_name"),
		Sector:      get("sector"),
		Industry:    get("industry"),
	}, true
}

// assetType maps provider quote types onto the catalog's two asset types.
func assetType(raw string) string {
	if strings.EqualFold(raw, model.AssetTypeETF) {
		return model.AssetTypeETF
	}
	return model.AssetTypeStock
}
