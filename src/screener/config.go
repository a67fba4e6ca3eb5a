package screener

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MinAverageVolume float64 `envconfig:"SCREEN_MIN_AVG_VOLUME" default:"1000000"`
	MinBeta          float64 `envconfig:"SCREEN_MIN_BETA" default:"1.5"`
	MaxSpread        float64 `envconfig:"SCREEN_MAX_SPREAD" default:"0.05"`
	ChunkSize        int     `envconfig:"SCREEN_CHUNK_SIZE" default:"100"`
	QuoteRetries     int     `envconfig:"SCREEN_QUOTE_RETRIES" default:"3"`
	RetryBackoffMs   int     `envconfig:"SCREEN_RETRY_BACKOFF_MS" default:"500"`
	CacheTTLMinutes  int     `envconfig:"SCREEN_CACHE_TTL_MINUTES" default:"60"`
	RequestsPerMin   int     `envconfig:"SCREEN_REQUESTS_PER_MINUTE" default:"120"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
