package migrations

import (
	"fmt"
	"strings"

	"stockbot/src/model"

	"gorm.io/gorm"
)

const defaultPositionSizePercent = 10

// backfillDefaultUserSettings gives every user without a settings row the
// defaults the settings page used to create lazily: inactive bot, paper
// trading, 10% position size, no filters.
func backfillDefaultUserSettings(db *gorm.DB) error {
	var userIDs []uint
	if err := db.Model(&model.User{}).
		Where("id NOT IN (?)", db.Model(&model.UserSetting{}).Select("user_id")).
		Pluck("id", &userIDs).Error; err != nil {
		return fmt.Errorf("collect users without settings: %w", err)
	}

	for _, id := range userIDs {
		setting := &model.UserSetting{
			UserID:       id,
			PositionSize: defaultPositionSizePercent,
			Paper:        true,
		}
		if err := db.Create(setting).Error; err != nil {
			return fmt.Errorf("create default settings for user %d: %w", id, err)
		}
	}

	return nil
}

// normalizeFilterSymbols upper-cases and trims stored symbol filters so they
// match catalog keys.
func normalizeFilterSymbols(db *gorm.DB) error {
	var settings []model.UserSetting
	if err := db.Where("filter_symbols IS NOT NULL AND filter_symbols <> ''").Find(&settings).Error; err != nil {
		return fmt.Errorf("load settings with symbol filters: %w", err)
	}

	for _, s := range settings {
		symbols := model.SplitList(s.FilterSymbols)
		for i := range symbols {
			symbols[i] = strings.ToUpper(symbols[i])
		}
		normalized := strings.Join(symbols, ",")
		if normalized == s.FilterSymbols {
			continue
		}
		if err := db.Model(&model.UserSetting{}).
			Where("id = ?", s.ID).
			Update("filter_symbols", normalized).Error; err != nil {
			return fmt.Errorf("normalize filter_symbols for setting %d: %w", s.ID, err)
		}
	}

	return nil
}
