package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AlpacaPaperURL string `envconfig:"ALPACA_PAPER_URL" default:"https://paper-api.alpaca.markets"`
	AlpacaLiveURL  string `envconfig:"ALPACA_LIVE_URL" default:"https://api.alpaca.markets"`
	AlpacaDataURL  string `envconfig:"ALPACA_DATA_URL" default:"https://data.alpaca.markets"`
	// Alpaca data feed: iex for free accounts, sip for paid ones.
	AlpacaDataFeed string `envconfig:"ALPACA_DATA_FEED" default:"iex"`

	YahooURL       string `envconfig:"YAHOO_URL" default:"https://query2.finance.yahoo.com"`
	YahooUserAgent string `envconfig:"YAHOO_USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"`

	HTTPTimeoutSeconds int `envconfig:"HTTP_TIMEOUT_SECONDS" default:"15"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// TradingURL picks the paper or live trading endpoint.
func (c Config) TradingURL(paper bool) string {
	if paper {
		return c.AlpacaPaperURL
	}
	return c.AlpacaLiveURL
}
