package connectors

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/mapper"
	"stockbot/src/model"
)

const (
	headerAPIKeyID     = "APCA-API-KEY-ID"
	headerAPISecretKey = "APCA-API-SECRET-KEY"
)

// AlpacaTradingClient talks to the Alpaca v2 trading API for one account.
type AlpacaTradingClient struct {
	baseURL string
	http    *resty.Client
}

func NewAlpacaTradingClient(apiKey, apiSecret, baseURL string) *AlpacaTradingClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = GetConfig().AlpacaPaperURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	httpClient := newRestClient(baseURL, time.Duration(GetConfig().HTTPTimeoutSeconds)*time.Second).
		SetHeader(headerAPIKeyID, apiKey).
		SetHeader(headerAPISecretKey, apiSecret).
		SetHeader("Accept", "application/json")

	return &AlpacaTradingClient{
		baseURL: baseURL,
		http:    httpClient,
	}
}

func (c *AlpacaTradingClient) GetAccount(ctx context.Context) (model.Account, error) {
	var out model.AlpacaAccountResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/v2/account")
	if err := checkResponse("alpaca.GetAccount", resp, err); err != nil {
		return model.Account{}, err
	}
	return mapper.MapAlpacaAccount(&out), nil
}

func (c *AlpacaTradingClient) GetOpenPositions(ctx context.Context) ([]model.BrokerPosition, error) {
	var out []model.AlpacaPositionResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/v2/positions")
	if err := checkResponse("alpaca.GetOpenPositions", resp, err); err != nil {
		return nil, err
	}
	return mapper.MapAlpacaPositions(out), nil
}

// GetOpenOrders lists open orders for symbol on side.
func (c *AlpacaTradingClient) GetOpenOrders(ctx context.Context, symbol string, side model.OrderSide) ([]model.BrokerOrder, error) {
	q := url.Values{}
	q.Set("status", "open")
	q.Set("symbols", symbol)
	q.Set("side", string(side))
	q.Set("limit", "500")

	var out []model.AlpacaOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(q).
		SetResult(&out).
		Get("/v2/orders")
	if err := checkResponse("alpaca.GetOpenOrders", resp, err); err != nil {
		return nil, err
	}

	orders := mapper.MapAlpacaOrders(out)
	filtered := orders[:0]
	for _, o := range orders {
		// the symbols filter is a substring match on some API versions
		if strings.EqualFold(o.Symbol, symbol) && o.Side == side {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// SubmitMarketOrder submits a day market order for a dollar notional.
func (c *AlpacaTradingClient) SubmitMarketOrder(
	ctx context.Context,
	symbol string,
	notional decimal.Decimal,
	side model.OrderSide,
	clientOrderID string,
) (*model.BrokerOrder, error) {

	body := model.AlpacaOrderRequest{
		Symbol:        symbol,
		Notional:      notional.StringFixed(2),
		Side:          string(side),
		Type:          "market",
		TimeInForce:   "day",
		ClientOrderID: clientOrderID,
	}

	logger.WithFields(map[string]interface{}{
		"component":       "AlpacaTradingClient",
		"symbol":          symbol,
		"side":            side,
		"notional":        body.Notional,
		"client_order_id": clientOrderID,
	}).Info("Submitting market order")

	var out model.AlpacaOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v2/orders")
	if err := checkResponse("alpaca.SubmitMarketOrder", resp, err); err != nil {
		return nil, err
	}
	return mapper.MapAlpacaOrder(&out), nil
}

func (c *AlpacaTradingClient) GetOrderByClientID(ctx context.Context, clientOrderID string) (*model.BrokerOrder, error) {
	var out model.AlpacaOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("client_order_id", clientOrderID).
		SetResult(&out).
		Get("/v2/orders:by_client_order_id")
	if err := checkResponse("alpaca.GetOrderByClientID", resp, err); err != nil {
		return nil, err
	}
	return mapper.MapAlpacaOrder(&out), nil
}

// ClosePosition liquidates 100% of the position in symbol.
func (c *AlpacaTradingClient) ClosePosition(ctx context.Context, symbol, clientOrderID string) (*model.BrokerOrder, error) {
	logger.WithFields(map[string]interface{}{
		"component":       "AlpacaTradingClient",
		"symbol":          symbol,
		"client_order_id": clientOrderID,
	}).Info("Closing position")

	var out model.AlpacaOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParam("percentage", "100").
		SetQueryParam("client_order_id", clientOrderID).
		SetResult(&out).
		Delete("/v2/positions/{symbol}")
	if err := checkResponse("alpaca.ClosePosition", resp, err); err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WithField("symbol", symbol).Warn("Position already gone when closing")
		}
		return nil, err
	}
	return mapper.MapAlpacaOrder(&out), nil
}
