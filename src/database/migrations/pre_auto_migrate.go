package migrations

import (
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// PrepareLegacySettingColumns renames the single-valued filter_sector column
// used by older deployments to filter_sectors so AutoMigrate keeps the data.
// Postgres only: it inspects information_schema.
func PrepareLegacySettingColumns(db *gorm.DB) error {
	const table = "user_settings"

	legacyType, legacyExists, err := lookupColumnType(db, table, "filter_sector")
	if err != nil {
		return fmt.Errorf("inspect %s.filter_sector: %w", table, err)
	}
	if !legacyExists {
		return nil
	}

	_, currentExists, err := lookupColumnType(db, table, "filter_sectors")
	if err != nil {
		return fmt.Errorf("inspect %s.filter_sectors: %w", table, err)
	}
	if currentExists {
		return nil
	}

	if !isStringy(legacyType) {
		return fmt.Errorf("unexpected type %q for %s.filter_sector", legacyType, table)
	}

	if err := db.Exec(fmt.Sprintf("ALTER TABLE %s RENAME COLUMN filter_sector TO filter_sectors", table)).Error; err != nil {
		return fmt.Errorf("rename filter_sector on %s: %w", table, err)
	}

	return nil
}

func lookupColumnType(db *gorm.DB, table, column string) (dataType string, exists bool, err error) {
	row := db.Raw(
		`SELECT data_type FROM information_schema.columns WHERE table_name = ? AND column_name = ?`,
		table,
		column,
	).Row()

	if scanErr := row.Scan(&dataType); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, scanErr
	}

	return dataType, true, nil
}

func isStringy(dataType string) bool {
	dataType = strings.ToLower(dataType)
	return strings.Contains(dataType, "char") || dataType == "text"
}
