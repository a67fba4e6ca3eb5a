package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"stockbot/src/mapper"
	"stockbot/src/model"
)

// FundamentalsClient reads average volume, beta and the top of book from
// Yahoo's quoteSummary endpoint.
type FundamentalsClient struct {
	http *resty.Client
}

func NewFundamentalsClient(baseURL string) *FundamentalsClient {
	cfg := GetConfig()
	if strings.TrimSpace(baseURL) == "" {
		baseURL = cfg.YahooURL
	}

	httpClient := newRestClient(baseURL, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second).
		SetHeader("User-Agent", cfg.YahooUserAgent).
		SetHeader("Accept", "application/json")

	return &FundamentalsClient{http: httpClient}
}

func (c *FundamentalsClient) GetFundamentals(ctx context.Context, symbol string) (model.Fundamentals, error) {
	var out model.YahooQuoteSummaryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("modules", "summaryDetail").
		SetResult(&out).
		Get("/v10/finance/quoteSummary/{symbol}")
	if err := checkResponse("yahoo.GetFundamentals", resp, err); err != nil {
		return model.Fundamentals{Symbol: symbol}, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}

	if e := out.QuoteSummary.Error; e != nil {
		return model.Fundamentals{Symbol: symbol}, fmt.Errorf("fundamentals %s: %s: %s", symbol, e.Code, e.Description)
	}

	return mapper.MapYahooSummary(symbol, &out), nil
}
