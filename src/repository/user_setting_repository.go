package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stockbot/src/database"
	"stockbot/src/model"
	"stockbot/src/security"
)

var (
	// ErrSettingsNotFound is returned when a user has no settings row (or no
	// user row). Callers treat it as "not configured", not as a failure.
	ErrSettingsNotFound = errors.New("user settings not found")
	ErrInvalidSetting   = errors.New("invalid setting")
)

// UserSettingRepository reads and writes the per-user bot configuration.
type UserSettingRepository struct {
	db      *gorm.DB
	encrypt func(string) (string, error)
	decrypt func(string) (string, error)
}

func NewUserSettingRepository() *UserSettingRepository {
	logger.WithField("component", "UserSettingRepository").
		Info("Creating new UserSettingRepository with MainDB")

	return &UserSettingRepository{
		db:      database.MainDB,
		encrypt: security.EncryptString,
		decrypt: security.DecryptString,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *UserSettingRepository) WithDB(db *gorm.DB) *UserSettingRepository {
	cp := *r
	cp.db = db
	if cp.encrypt == nil {
		cp.encrypt = security.EncryptString
	}
	if cp.decrypt == nil {
		cp.decrypt = security.DecryptString
	}
	return &cp
}

func (r *UserSettingRepository) Create(ctx context.Context, setting *model.UserSetting) error {
	return r.db.WithContext(ctx).Create(setting).Error
}

// GetByUserID returns ErrSettingsNotFound when the row does not exist.
func (r *UserSettingRepository) GetByUserID(ctx context.Context, userID uint) (*model.UserSetting, error) {
	var s model.UserSetting
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&s).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "UserSettingRepository",
			"op":      "GetByUserID",
			"user_id": userID,
		}).WithError(err).Error("Failed to load user settings")
		return nil, err
	}

	return &s, nil
}

// ListActiveUserIDs returns users whose bot is switched on, in id order.
func (r *UserSettingRepository) ListActiveUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&model.UserSetting{}).
		Where("bot_active = ?", true).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	return ids, nil
}

// SetBotActive flips the activation flag. LastActivatedAt is stamped only
// when switching on.
func (r *UserSettingRepository) SetBotActive(ctx context.Context, userID uint, active bool, at time.Time) error {
	updates := map[string]interface{}{"bot_active": active}
	if active {
		updates["last_activated_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&model.UserSetting{}).
		Where("user_id = ?", userID).
		Updates(updates)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSettingsNotFound
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "UserSettingRepository",
		"op":         "SetBotActive",
		"user_id":    userID,
		"bot_active": active,
	}).Info("Bot activation changed")

	return nil
}

// ApplyUpdate validates payload and writes only the fields it carries.
// Credentials are encrypted before they reach the database.
func (r *UserSettingRepository) ApplyUpdate(
	ctx context.Context,
	userID uint,
	payload model.UpdateUserSettingPayload,
) (*model.UserSetting, error) {

	updates, err := r.buildUpdates(payload)
	if err != nil {
		return nil, err
	}

	if _, err := r.GetByUserID(ctx, userID); err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		if err := r.db.WithContext(ctx).
			Model(&model.UserSetting{}).
			Where("user_id = ?", userID).
			Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update settings for user %d: %w", userID, err)
		}
	}

	return r.GetByUserID(ctx, userID)
}

func (r *UserSettingRepository) buildUpdates(p model.UpdateUserSettingPayload) (map[string]interface{}, error) {
	updates := map[string]interface{}{}

	if p.PositionSize != nil {
		if *p.PositionSize < 0 || *p.PositionSize > 100 {
			return nil, fmt.Errorf("%w: position_size must be between 0 and 100", ErrInvalidSetting)
		}
		updates["position_size"] = *p.PositionSize
	}

	if p.FilterSymbols != nil {
		joined, err := joinFilter("filter_symbols", *p.FilterSymbols, true)
		if err != nil {
			return nil, err
		}
		updates["filter_symbols"] = joined
	}

	if p.FilterSectors != nil {
		joined, err := joinFilter("filter_sectors", *p.FilterSectors, false)
		if err != nil {
			return nil, err
		}
		updates["filter_sectors"] = joined
	}

	if p.Paper != nil {
		updates["paper"] = *p.Paper
	}

	if p.APIKey != nil {
		sealed, err := r.encrypt(*p.APIKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt api key: %w", err)
		}
		updates["alpaca_api_key"] = sealed
	}

	if p.APISecret != nil {
		sealed, err := r.encrypt(*p.APISecret)
		if err != nil {
			return nil, fmt.Errorf("encrypt api secret: %w", err)
		}
		updates["alpaca_api_secret"] = sealed
	}

	return updates, nil
}

func joinFilter(field string, items []string, upper bool) (string, error) {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if strings.Contains(it, ",") {
			return "", fmt.Errorf("%w: %s entries must not contain commas", ErrInvalidSetting, field)
		}
		if upper {
			it = strings.ToUpper(it)
		}
		out = append(out, it)
	}
	return strings.Join(out, ","), nil
}

// LoadTradingConfig builds the run snapshot for userID: settings plus user
// name, credentials decrypted, filters split. ErrSettingsNotFound when
// either row is missing.
func (r *UserSettingRepository) LoadTradingConfig(ctx context.Context, userID uint) (model.TradingConfig, error) {
	setting, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return model.TradingConfig{}, err
	}

	var user model.User
	err = r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.TradingConfig{}, ErrSettingsNotFound
	}
	if err != nil {
		return model.TradingConfig{}, fmt.Errorf("load user %d: %w", userID, err)
	}

	cfg := model.TradingConfig{
		UserID:       userID,
		UserName:     user.UserName,
		PositionSize: setting.PositionSize,
		BotActive:    setting.BotActive,
		Paper:        setting.Paper,
		Symbols:      setting.SymbolList(),
		Sectors:      setting.SectorList(),
	}

	if setting.APIKeyHash != "" {
		if cfg.APIKey, err = r.decrypt(setting.APIKeyHash); err != nil {
			return model.TradingConfig{}, fmt.Errorf("decrypt api key for user %d: %w", userID, err)
		}
	}
	if setting.APISecretHash != "" {
		if cfg.APISecret, err = r.decrypt(setting.APISecretHash); err != nil {
			return model.TradingConfig{}, fmt.Errorf("decrypt api secret for user %d: %w", userID, err)
		}
	}

	return cfg, nil
}
