package utils

import (
	"testing"

	logger "github.com/sirupsen/logrus"
)

func TestSetupLogger(t *testing.T) {
	prevLevel, prevFormatter := logger.GetLevel(), logger.StandardLogger().Formatter
	t.Cleanup(func() {
		logger.SetLevel(prevLevel)
		logger.SetFormatter(prevFormatter)
	})

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")
	SetupLogger()
	if logger.GetLevel() != logger.WarnLevel {
		t.Fatalf("expected warn level, got %s", logger.GetLevel())
	}
	if _, ok := logger.StandardLogger().Formatter.(*logger.JSONFormatter); !ok {
		t.Fatalf("expected json formatter")
	}

	t.Setenv("LOG_LEVEL", "nonsense")
	t.Setenv("LOG_FORMAT", "")
	SetupLogger()
	if logger.GetLevel() != logger.DebugLevel {
		t.Fatalf("expected debug fallback, got %s", logger.GetLevel())
	}
	if _, ok := logger.StandardLogger().Formatter.(*logger.TextFormatter); !ok {
		t.Fatalf("expected text formatter")
	}
}
