package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"stockbot/src/auth"
	"stockbot/src/executors"
	"stockbot/src/repository"
)

type botRunner interface {
	Run(ctx context.Context, userID uint) executors.RunResult
	RunAll(ctx context.Context) executors.SweepResult
	Toggle(ctx context.Context, userID uint) (bool, error)
	Go(f func())
}

// BotHandler triggers runs. Runs outlive the request; callers only learn that
// a run was started and read the outcome from the bot operations list. They
// are started through the runner so shutdown can wait for them.
type BotHandler struct {
	runner botRunner
}

func NewBotHandler(runner botRunner) *BotHandler {
	return &BotHandler{runner: runner}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func (h *BotHandler) RunUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		ctx := context.WithoutCancel(r.Context())
		h.runner.Go(func() {
			res := h.runner.Run(ctx, userID)
			logger.WithFields(map[string]interface{}{
				"user_id": userID,
				"status":  res.Status,
			}).Info("triggered run finished")
		})

		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"status":  "run initiated",
			"user_id": userID,
		})
	}
}

func (h *BotHandler) RunAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithoutCancel(r.Context())
		h.runner.Go(func() {
			res := h.runner.RunAll(ctx)
			logger.WithFields(map[string]interface{}{
				"skipped": res.Skipped,
				"users":   len(res.Runs),
			}).Info("triggered sweep finished")
		})

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sweep initiated"})
	}
}

func (h *BotHandler) Toggle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		active, err := h.runner.Toggle(r.Context(), userID)
		if errors.Is(err, repository.ErrSettingsNotFound) {
			http.Error(w, "settings not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.WithError(err).WithField("user_id", userID).Error("failed to toggle bot")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user_id":    userID,
			"bot_active": active,
		})
	}
}
