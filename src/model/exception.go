package model

import "time"

// Exception is a run-level failure persisted for later inspection. Errors
// scoped to one symbol go to the audit trail instead.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Zero when the failure is not tied to a user, e.g. listing active users.
	UserID uint `gorm:"index" json:"user_id,omitempty"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "Coordinator"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "executors"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "LoadTradingConfig"

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // error | fatal

	// JSON object with whatever the caller passed along (symbol, user_id...)
	Context string `gorm:"type:jsonb" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
