package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"stockbot/src/auth"
	"stockbot/src/model"
	"stockbot/src/repository"
)

type settingsUpdater interface {
	ApplyUpdate(ctx context.Context, userID uint, payload model.UpdateUserSettingPayload) (*model.UserSetting, error)
}

// UpdateSettingsHandler applies a partial settings update. Keys outside the
// allowed payload are rejected.
func UpdateSettingsHandler(repo settingsUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}

		var payload model.UpdateUserSettingPayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid settings update payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		setting, err := repo.ApplyUpdate(r.Context(), userID, payload)
		switch {
		case errors.Is(err, repository.ErrInvalidSetting):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, repository.ErrSettingsNotFound):
			http.Error(w, "settings not found", http.StatusNotFound)
			return
		case err != nil:
			logger.WithError(err).WithField("user_id", userID).Error("failed to update settings")
			http.Error(w, "Unable to update settings", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, setting)
	}
}

// DefaultUpdateSettingsHandler wires the handler to the production repository implementation.
func DefaultUpdateSettingsHandler() http.HandlerFunc {
	return UpdateSettingsHandler(repository.NewUserSettingRepository())
}
