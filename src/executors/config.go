package executors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Cron spec for the all-users sweep, evaluated in ScheduleTimezone.
	Schedule         string `envconfig:"RUN_SCHEDULE" default:"15 17 * * *"`
	ScheduleTimezone string `envconfig:"RUN_SCHEDULE_TZ" default:"Asia/Jerusalem"`
	SkipMarketClosed bool   `envconfig:"RUN_SKIP_MARKET_CLOSED" default:"true"`

	// Upper bound for one user's run, 0 means none.
	RunTimeoutMinutes int `envconfig:"RUN_TIMEOUT_MINUTES" default:"0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
