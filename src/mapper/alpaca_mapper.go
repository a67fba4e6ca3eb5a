package mapper

import (
	"strings"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stockbot/src/model"
)

// decimalSafe parses a numeric string; empty or malformed input is logged
// and mapped to zero instead of failing the whole response.
func decimalSafe(mapperName, field, v string) decimal.Decimal {
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"mapper": mapperName,
			"field":  field,
			"value":  v,
		}).WithError(err).Error("Failed to parse decimal from Alpaca response field; defaulting to 0")
		return decimal.Zero
	}
	return d
}

func MapAlpacaAccount(resp *model.AlpacaAccountResponse) model.Account {
	if resp == nil {
		return model.Account{}
	}
	return model.Account{
		BuyingPower: decimalSafe("MapAlpacaAccount", "buying_power", resp.BuyingPower),
		Equity:      decimalSafe("MapAlpacaAccount", "equity", resp.Equity),
	}
}

func MapAlpacaPositions(resp []model.AlpacaPositionResponse) []model.BrokerPosition {
	out := make([]model.BrokerPosition, 0, len(resp))
	for _, p := range resp {
		out = append(out, model.BrokerPosition{
			Symbol: strings.ToUpper(strings.TrimSpace(p.Symbol)),
			Qty:    decimalSafe("MapAlpacaPositions", "qty", p.Qty),
		})
	}
	return out
}

// MapAlpacaOrder normalises status and side to lower case; unknown statuses
// are kept verbatim.
func MapAlpacaOrder(resp *model.AlpacaOrderResponse) *model.BrokerOrder {
	if resp == nil {
		logger.WithField("mapper", "MapAlpacaOrder").Error("Nil AlpacaOrderResponse received")
		return nil
	}

	order := &model.BrokerOrder{
		ID:            resp.ID,
		ClientOrderID: resp.ClientOrderID,
		Symbol:        strings.ToUpper(resp.Symbol),
		Side:          model.OrderSide(strings.ToLower(resp.Side)),
		Status:        strings.ToLower(resp.Status),
		SubmittedAt:   resp.SubmittedAt,
		FilledAt:      resp.FilledAt,
	}
	if resp.Notional != nil {
		order.Notional = decimalSafe("MapAlpacaOrder", "notional", *resp.Notional)
	}
	return order
}

func MapAlpacaOrders(resp []model.AlpacaOrderResponse) []model.BrokerOrder {
	out := make([]model.BrokerOrder, 0, len(resp))
	for i := range resp {
		if o := MapAlpacaOrder(&resp[i]); o != nil {
			out = append(out, *o)
		}
	}
	return out
}

func MapAlpacaBars(symbol string, resp []model.AlpacaBarResponse) []model.Bar {
	out := make([]model.Bar, 0, len(resp))
	for _, b := range resp {
		out = append(out, model.Bar{
			Symbol:    symbol,
			Timestamp: b.Timestamp.UTC(),
			Open:      decimal.NewFromFloat(b.Open),
			High:      decimal.NewFromFloat(b.High),
			Low:       decimal.NewFromFloat(b.Low),
			Close:     decimal.NewFromFloat(b.Close),
			Volume:    decimal.NewFromFloat(b.Volume),
		})
	}
	return out
}

// MapYahooSummary keeps missing values as nil so the screener can tell
// "absent" from zero.
func MapYahooSummary(symbol string, resp *model.YahooQuoteSummaryResponse) model.Fundamentals {
	f := model.Fundamentals{Symbol: symbol}
	if resp == nil || len(resp.QuoteSummary.Result) == 0 {
		return f
	}
	d := resp.QuoteSummary.Result[0].SummaryDetail
	f.AverageVolume = d.AverageVolume.Raw
	f.Beta = d.Beta.Raw
	f.Bid = d.Bid.Raw
	f.Ask = d.Ask.Raw
	return f
}
