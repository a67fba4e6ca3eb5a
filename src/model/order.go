package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order statuses as reported by the brokerage. Anything else is kept verbatim.
const (
	OrderStatusNew        = "new"
	OrderStatusPendingNew = "pending_new"
	OrderStatusAccepted   = "accepted"
	OrderStatusFilled     = "filled"
	OrderStatusCanceled   = "canceled"
	OrderStatusRejected   = "rejected"
)

// BrokerOrder is the brokerage's view of an order. The bot never owns its
// state, it only polls it.
type BrokerOrder struct {
	ID            string          `json:"id"`
	ClientOrderID string          `json:"client_order_id"`
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Status        string          `json:"status"`
	Notional      decimal.Decimal `json:"notional"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty"`
	FilledAt      *time.Time      `json:"filled_at,omitempty"`
}

// IsOpen reports whether the order still waits on the venue.
func (o BrokerOrder) IsOpen() bool {
	switch strings.ToLower(o.Status) {
	case OrderStatusNew, OrderStatusPendingNew, OrderStatusAccepted:
		return true
	}
	return false
}

// IsTerminalFailure reports canceled or rejected orders.
func (o BrokerOrder) IsTerminalFailure() bool {
	switch strings.ToLower(o.Status) {
	case OrderStatusCanceled, OrderStatusRejected:
		return true
	}
	return false
}

type BrokerPosition struct {
	Symbol string          `json:"symbol"`
	Qty    decimal.Decimal `json:"qty"`
}

type Account struct {
	BuyingPower decimal.Decimal `json:"buying_power"`
	Equity      decimal.Decimal `json:"equity"`
}

// SignalRecord is a buy or sell decision for one symbol, valid for the run
// that produced it only.
type SignalRecord struct {
	Symbol string
	AsOf   time.Time
}
