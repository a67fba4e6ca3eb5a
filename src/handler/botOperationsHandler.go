package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"stockbot/src/auth"
	"stockbot/src/model"
	"stockbot/src/repository"
)

type botOperationLister interface {
	ListByUser(ctx context.Context, userID uint, opts repository.BotOperationSearchOptions) ([]model.BotOperation, error)
}

// ListBotOperationsHandler returns a handler that lists a user's audit trail,
// newest first. Supports pagination and filters (stage, status, since).
func ListBotOperationsHandler(repo botOperationLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		query := r.URL.Query()
		var opts repository.BotOperationSearchOptions

		if stageParam := query.Get("stage"); stageParam != "" {
			stage := model.Stage(stageParam)
			opts.Stage = &stage
		}

		if statusParam := query.Get("status"); statusParam != "" {
			status := model.OperationStatus(statusParam)
			opts.Status = &status
		}

		if sinceParam := query.Get("since"); sinceParam != "" {
			parsed, err := time.Parse(time.RFC3339, sinceParam)
			if err != nil {
				http.Error(w, "invalid since", http.StatusBadRequest)
				return
			}
			opts.Since = &parsed
		}

		page := 1
		if pageParam := query.Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		pageSize := 50
		if sizeParam := query.Get("pageSize"); sizeParam != "" {
			parsedSize, err := strconv.Atoi(sizeParam)
			if err != nil || parsedSize <= 0 || parsedSize > 500 {
				http.Error(w, "invalid pageSize", http.StatusBadRequest)
				return
			}
			pageSize = parsedSize
		}

		opts.Limit = pageSize
		opts.Offset = (page - 1) * pageSize

		ops, err := repo.ListByUser(r.Context(), userID, opts)
		if err != nil {
			logger.WithError(err).Error("failed to list bot operations")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if ops == nil {
			ops = []model.BotOperation{}
		}

		writeJSON(w, http.StatusOK, ops)
	}
}

// DefaultListBotOperationsHandler wires the handler to the production repository implementation.
func DefaultListBotOperationsHandler() http.HandlerFunc {
	return ListBotOperationsHandler(repository.NewBotOperationRepository())
}
