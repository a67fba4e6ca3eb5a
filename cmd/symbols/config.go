package symbols

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	File      string `envconfig:"SYMBOLS_FILE" default:"stock_symbols.csv"`
	BatchSize int    `envconfig:"SYMBOLS_BATCH_SIZE" default:"200"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
