package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/mapper"
	"stockbot/src/model"
)

const maxBarPages = 50

// MarketDataClient fetches historical bars from the Alpaca data API using the
// account's own credentials.
type MarketDataClient struct {
	feed string
	http *resty.Client
}

func NewMarketDataClient(apiKey, apiSecret, baseURL string) *MarketDataClient {
	cfg := GetConfig()
	if strings.TrimSpace(baseURL) == "" {
		baseURL = cfg.AlpacaDataURL
	}

	httpClient := newRestClient(baseURL, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second).
		SetHeader(headerAPIKeyID, apiKey).
		SetHeader(headerAPISecretKey, apiSecret).
		SetHeader("Accept", "application/json")

	return &MarketDataClient{feed: cfg.AlpacaDataFeed, http: httpClient}
}

// GetBars returns split/dividend adjusted bars for [start, end], oldest
// first, following next_page_token until exhausted.
func (c *MarketDataClient) GetBars(
	ctx context.Context,
	symbol string,
	timeframe model.Timeframe,
	start, end time.Time,
) ([]model.Bar, error) {

	var (
		bars      []model.Bar
		pageToken string
	)

	for page := 0; page < maxBarPages; page++ {
		req := c.http.R().
			SetContext(ctx).
			SetPathParam("symbol", symbol).
			SetQueryParam("timeframe", string(timeframe)).
			SetQueryParam("start", start.UTC().Format(time.RFC3339)).
			SetQueryParam("end", end.UTC().Format(time.RFC3339)).
			SetQueryParam("adjustment", "all").
			SetQueryParam("limit", "10000")
		if c.feed != "" {
			req.SetQueryParam("feed", c.feed)
		}
		if pageToken != "" {
			req.SetQueryParam("page_token", pageToken)
		}

		var out model.AlpacaBarsPage
		resp, err := req.SetResult(&out).Get("/v2/stocks/{symbol}/bars")
		if err := checkResponse("alpaca.GetBars", resp, err); err != nil {
			return nil, fmt.Errorf("bars %s %s: %w", symbol, timeframe, err)
		}

		bars = append(bars, mapper.MapAlpacaBars(symbol, out.Bars)...)

		if out.NextPageToken == nil || *out.NextPageToken == "" {
			logger.WithFields(map[string]interface{}{
				"component": "MarketDataClient",
				"symbol":    symbol,
				"timeframe": timeframe,
				"bars":      len(bars),
			}).Debug("Fetched bars")
			return bars, nil
		}
		pageToken = *out.NextPageToken
	}

	return nil, fmt.Errorf("bars %s %s: more than %d pages", symbol, timeframe, maxBarPages)
}
