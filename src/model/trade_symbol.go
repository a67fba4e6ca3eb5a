package model

const (
	AssetTypeStock = "Stock"
	AssetTypeETF   = "ETF"
)

// TradeSymbol is a catalog entry. The catalog is refreshed out of band and is
// read-only for the bot.
type TradeSymbol struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Symbol      string `gorm:"size:10;not null;uniqueIndex" json:"symbol"`
	Type        string `gorm:"size:10;not null" json:"type"`
	Description string `gorm:"size:255" json:"description"`
	Exchange    string `gorm:"size:50" json:"exchange"`
	CompanyName string `gorm:"size:255" json:"company_name"`
	Sector      string `gorm:"size:100;index" json:"sector"`
	Industry    string `gorm:"size:100" json:"industry"`
}

func (TradeSymbol) TableName() string {
	return "trade_symbols"
}
