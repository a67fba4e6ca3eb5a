package risk

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PositionAmount is the dollar notional for one buy: equity * percent / 100,
// rounded half away from zero to cents. percent is clamped to [0, 100].
func PositionAmount(equity decimal.Decimal, percent float64) decimal.Decimal {
	if equity.LessThanOrEqual(decimal.Zero) || percent <= 0 {
		return decimal.Zero
	}
	if percent > 100 {
		percent = 100
	}
	return equity.Mul(decimal.NewFromFloat(percent)).Div(hundred).Round(2)
}

// CanAfford reports whether buyingPower covers amount.
func CanAfford(buyingPower, amount decimal.Decimal) bool {
	return buyingPower.GreaterThanOrEqual(amount)
}
