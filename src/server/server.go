package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/auth"
	"stockbot/src/handler"
)

// Routes holds the handlers mounted under /api.
type Routes struct {
	Bot            *handler.BotHandler
	UpdateSettings http.HandlerFunc
	BotOperations  http.HandlerFunc
	Exceptions     http.HandlerFunc
	APIToken       string
}

func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.RequireToken(routes.APIToken))

		api.Post("/run-all", routes.Bot.RunAll())

		api.Route("/users/{id}", func(user chi.Router) {
			user.Use(auth.UserFromPath("id"))
			user.Post("/run", routes.Bot.RunUser())
			user.Post("/toggle", routes.Bot.Toggle())
			user.Get("/bot-operations", routes.BotOperations)
			if routes.Exceptions != nil {
				user.Get("/exceptions", routes.Exceptions)
			}
			user.Patch("/settings", routes.UpdateSettings)
		})
	})

	return r
}

// StartServer serves handler until SIGINT or SIGTERM, then shuts down
// gracefully and calls onShutdown.
func StartServer(port string, h http.Handler, onShutdown func()) {
	addr := ":" + port
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), GetConfig().ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}

	if onShutdown != nil {
		onShutdown()
	}
}
