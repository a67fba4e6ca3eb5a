package keys

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	DefaultPositionSize float64 `envconfig:"DEFAULT_POSITION_SIZE" default:"10"`
	DefaultPaper        bool    `envconfig:"DEFAULT_PAPER" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
