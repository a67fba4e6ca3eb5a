package model

import "time"

// Raw Alpaca v2 payloads. Numeric fields arrive as strings on the trading
// API and as numbers on the data API.

type AlpacaAccountResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Currency    string `json:"currency"`
	BuyingPower string `json:"buying_power"`
	Equity      string `json:"equity"`
	Cash        string `json:"cash"`
}

type AlpacaPositionResponse struct {
	AssetID     string `json:"asset_id"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Qty         string `json:"qty"`
	MarketValue string `json:"market_value"`
}

type AlpacaOrderRequest struct {
	Symbol        string `json:"symbol"`
	Notional      string `json:"notional"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	ClientOrderID string `json:"client_order_id"`
}

type AlpacaOrderResponse struct {
	ID            string     `json:"id"`
	ClientOrderID string     `json:"client_order_id"`
	Symbol        string     `json:"symbol"`
	Side          string     `json:"side"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Notional      *string    `json:"notional"`
	Qty           *string    `json:"qty"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	FilledAt      *time.Time `json:"filled_at"`
}

type AlpacaBarResponse struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

type AlpacaBarsPage struct {
	Symbol        string              `json:"symbol"`
	Bars          []AlpacaBarResponse `json:"bars"`
	NextPageToken *string             `json:"next_page_token"`
}

type AlpacaErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// YahooRawValue is Yahoo's {"raw": 1.23, "fmt": "1.23"} wrapper.
type YahooRawValue struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type YahooQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				AverageVolume YahooRawValue `json:"averageVolume"`
				Beta          YahooRawValue `json:"beta"`
				Bid           YahooRawValue `json:"bid"`
				Ask           YahooRawValue `json:"ask"`
			} `json:"summaryDetail"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}
