package strategy

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	KPeriod       int     `envconfig:"STOCH_K_PERIOD" default:"10"`
	DPeriod       int     `envconfig:"STOCH_D_PERIOD" default:"3"`
	BuyThreshold  float64 `envconfig:"STOCH_BUY_THRESHOLD" default:"32"`
	SellThreshold float64 `envconfig:"STOCH_SELL_THRESHOLD" default:"80"`
	LookbackDays  int     `envconfig:"SIGNAL_LOOKBACK_DAYS" default:"200"`
	// minimum spacing between two symbols' data requests
	SymbolDelayMillis int `envconfig:"SIGNAL_SYMBOL_DELAY_MS" default:"1000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) lookback() time.Duration {
	return time.Duration(c.LookbackDays) * 24 * time.Hour
}
