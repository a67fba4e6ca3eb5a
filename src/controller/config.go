package controller

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	PollIntervalMs     int `envconfig:"ORDER_POLL_INTERVAL_MS" default:"2000"`
	SellTimeoutSeconds int `envconfig:"SELL_CONFIRM_TIMEOUT_SECONDS" default:"120"`
	BuyMaxWaitSeconds  int `envconfig:"BUY_CONFIRM_MAX_WAIT_SECONDS" default:"0"` // 0 waits until the order is terminal
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) pollInterval() time.Duration {
	if c.PollIntervalMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) sellTimeout() time.Duration {
	if c.SellTimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.SellTimeoutSeconds) * time.Second
}

func (c Config) buyMaxWait() time.Duration {
	return time.Duration(c.BuyMaxWaitSeconds) * time.Second
}
