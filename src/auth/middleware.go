package auth

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

// RequireToken rejects requests whose bearer token does not match token.
func RequireToken(token string) func(http.Handler) http.Handler {
	if token == "" {
		logger.Warn("API_TOKEN not set, operator API is unauthenticated")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
					logger.WithField("path", r.URL.Path).Warn("rejected request with invalid token")
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFromPath puts the numeric URL parameter param into the request context.
func UserFromPath(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseUint(chi.URLParam(r, param), 10, 64)
			if err != nil || id == 0 {
				http.Error(w, "invalid user id", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), uint(id))))
		})
	}
}
