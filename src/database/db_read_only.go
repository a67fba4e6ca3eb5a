package database

import (
	"fmt"
	"strings"

	"stockbot/src/model"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ReadOnlyDB serves the symbol catalog. The database user for this connection
// should have SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB initializes the read-only catalog connection.
// Without DATABASE_URL_READONLY it reuses MainDB, so InitMainDB must run first.
func InitReadOnlyDB() error {
	config := GetConfig()

	if strings.TrimSpace(config.DatabaseURLReadOnly) == "" {
		if MainDB == nil {
			return fmt.Errorf("no read-only database configured and MainDB not initialized")
		}
		logrus.Info("[ReadOnlyDB] DATABASE_URL_READONLY not set, catalog reads use MainDB")
		ReadOnlyDB = MainDB
		return nil
	}

	db, err := gorm.Open(postgres.Open(config.DatabaseURLReadOnly),
		&gorm.Config{
			PrepareStmt:    true,
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to connect to read-only database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var dbName, schema string
	if err := db.
		Raw("SELECT current_database(), current_schema()").
		Row().
		Scan(&dbName, &schema); err != nil {
		return fmt.Errorf("failed to query current db/schema on ReadOnlyDB: %w", err)
	}

	logrus.WithFields(map[string]interface{}{"dbName": dbName, "schema": schema}).Info("[ReadOnlyDB] connected")

	var count int64
	if err := db.Model(&model.TradeSymbol{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access trade_symbols: %w", err)
	}

	logrus.WithFields(map[string]interface{}{"count": count}).Info("[ReadOnlyDB] trade_symbols reachable")

	ReadOnlyDB = db

	return nil
}
