package model

import (
	"strings"
	"time"
)

// UserSetting is the persisted per-user bot configuration.
// Credentials are stored encrypted, see security.EncryptString.
type UserSetting struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	APIKeyHash      string     `gorm:"column:alpaca_api_key;type:text" json:"-"`
	APISecretHash   string     `gorm:"column:alpaca_api_secret;type:text" json:"-"`
	PositionSize    float64    `gorm:"column:position_size;not null" json:"position_size"` // percent of equity, 0-100
	BotActive       bool       `gorm:"column:bot_active;not null" json:"bot_active"`
	FilterSymbols   string     `gorm:"column:filter_symbols;type:text" json:"filter_symbols"` // comma separated
	FilterSectors   string     `gorm:"column:filter_sectors;type:text" json:"filter_sectors"` // comma separated
	Paper           bool       `gorm:"column:paper;not null" json:"paper"`
	LastActivatedAt *time.Time `json:"last_activated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (UserSetting) TableName() string {
	return "user_settings"
}

// SymbolList returns the symbol allow-list as entered, blanks removed.
func (s *UserSetting) SymbolList() []string {
	return SplitList(s.FilterSymbols)
}

// SectorList returns the sector allow-list as entered, blanks removed.
func (s *UserSetting) SectorList() []string {
	return SplitList(s.FilterSectors)
}

// SplitList splits a comma separated column into trimmed, non-empty items.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// TradingConfig is the immutable snapshot of a user's settings taken at run
// start. Slices are copies, so later edits to the stored row are not seen.
type TradingConfig struct {
	UserID       uint
	UserName     string
	APIKey       string
	APISecret    string
	PositionSize float64
	BotActive    bool
	Paper        bool
	Symbols      []string
	Sectors      []string
}

// UpdateUserSettingPayload lists the settings a user may change. Any other
// key in the request body is rejected by the decoder.
type UpdateUserSettingPayload struct {
	APIKey        *string   `json:"alpaca_api_key,omitempty"`
	APISecret     *string   `json:"alpaca_api_secret,omitempty"`
	PositionSize  *float64  `json:"position_size,omitempty"`
	FilterSymbols *[]string `json:"filter_symbols,omitempty"`
	FilterSectors *[]string `json:"filter_sectors,omitempty"`
	Paper         *bool     `json:"paper,omitempty"`
}
