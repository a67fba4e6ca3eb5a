package utils

import (
	"os"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// SetupLogger configures the global logger from LOG_LEVEL and LOG_FORMAT.
func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel // fallback seguro
	}

	logger.SetLevel(level)
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
	} else {
		logger.SetFormatter(&logger.TextFormatter{
			FullTimestamp: true,
		})
	}

	logger.WithField("level", level.String()).Debug("Logger initialized")
}
