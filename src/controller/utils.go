package controller

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"stockbot/src/model"
)

type exceptionRepository interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// NormalizeSymbol uppercases and trims a ticker so broker and catalog
// spellings compare equal.
//
//	aapl   -> AAPL
//	 brk.b -> BRK.B
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Capture records a system exception, logs it locally, and optionally
// persists it in the database.
func Capture(
	ctx context.Context,
	repo exceptionRepository,
	service string,
	module string,
	method string,
	level string,
	err error,
	contextData map[string]interface{},
) {

	if err == nil {
		return
	}

	ctxJSON := "{}"
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   service,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now(),
	}
	if id, ok := contextData["user_id"].(uint); ok {
		exc.UserID = id
	}

	// Local log
	logger.WithFields(map[string]interface{}{
		"user_id": exc.UserID,
		"service": service,
		"module":  module,
		"method":  method,
		"level":   level,
	}).WithError(err).Error("System exception captured")

	// Persist in database
	if repo != nil {
		if e := repo.Create(ctx, exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}
