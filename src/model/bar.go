package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Timeframe string

const (
	TimeframeDay  Timeframe = "1Day"
	TimeframeWeek Timeframe = "1Week"
)

// Bar is one OHLC candle as returned by the market data provider.
type Bar struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Fundamentals are the point in time attributes used for screening.
// Pointers are nil when the provider did not report the value.
type Fundamentals struct {
	Symbol        string   `json:"symbol"`
	AverageVolume *float64 `json:"average_volume,omitempty"`
	Beta          *float64 `json:"beta,omitempty"`
	Bid           *float64 `json:"bid,omitempty"`
	Ask           *float64 `json:"ask,omitempty"`
}

// HasQuote is true when both sides of the book are known.
func (f Fundamentals) HasQuote() bool {
	return f.Bid != nil && f.Ask != nil
}

// Spread returns ask - bid, zero without a quote. Decimal so a quoted
// 100.00/100.05 book is exactly 0.05.
func (f Fundamentals) Spread() decimal.Decimal {
	if !f.HasQuote() {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*f.Ask).Sub(decimal.NewFromFloat(*f.Bid))
}
