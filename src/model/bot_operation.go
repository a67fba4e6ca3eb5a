// model/bot_operation.go
package model

import "time"

// Stage of the bot pipeline an operation belongs to.
type Stage string

const (
	StageFirstScreen       Stage = "First Screen"
	StageIndicator         Stage = "Indicator"
	StageOrderStatus       Stage = "Order Status"
	StageOrderConfirmation Stage = "Order Confirmation"
)

// OperationStatus is the outcome recorded for an operation.
type OperationStatus string

const (
	OperationPassed    OperationStatus = "Passed"
	OperationFailed    OperationStatus = "Failed"
	OperationFilled    OperationStatus = "Filled"
	OperationSubmitted OperationStatus = "Submitted"
	OperationError     OperationStatus = "Error"
)

// NoSymbol is stored for events that are not tied to a single stock.
const NoSymbol = "None"

// BotOperation is one append-only row of the audit trail a run leaves behind.
// Rows are never updated or deleted by the bot.
type BotOperation struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index:idx_bot_operations_user_ts" json:"user_id"`
	StockSymbol string          `gorm:"size:20;not null" json:"stock_symbol"`
	Stage       Stage           `gorm:"size:30;not null" json:"stage"`
	Status      OperationStatus `gorm:"size:20;not null" json:"status"`
	Reason      string          `gorm:"type:text" json:"reason"`
	Timestamp   time.Time       `gorm:"not null;index:idx_bot_operations_user_ts" json:"timestamp"`
}

// TableName allows you to control the exact table name for bot operations.
func (BotOperation) TableName() string {
	return "bot_operations"
}
