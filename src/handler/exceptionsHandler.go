package handler

import (
	"context"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"stockbot/src/auth"
	"stockbot/src/model"
	"stockbot/src/repository"
)

type exceptionLister interface {
	ListByUser(ctx context.Context, userID uint, limit int) ([]model.Exception, error)
}

// ListExceptionsHandler lists the run failures captured for a user.
func ListExceptionsHandler(repo exceptionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 || parsed > 500 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		excs, err := repo.ListByUser(r.Context(), userID, limit)
		if err != nil {
			logger.WithError(err).Error("failed to list exceptions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if excs == nil {
			excs = []model.Exception{}
		}

		writeJSON(w, http.StatusOK, excs)
	}
}

func DefaultListExceptionsHandler() http.HandlerFunc {
	return ListExceptionsHandler(repository.NewExceptionRepository())
}
