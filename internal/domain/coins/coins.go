// Package coins holds the conversion rules between QvaCoins and currency units.
package coins

import "github.com/shopspring/decimal"

var (
	// PerUnit is the number of coins worth one currency unit.
	PerUnit = decimal.NewFromInt(100)

	// Value is the currency value of a single coin.
	Value = decimal.NewFromInt(1).Div(PerUnit)

	// MaxDiscountRate caps the share of a purchase that can be paid with coins.
	MaxDiscountRate = decimal.RequireFromString("0.05")
)

func FromCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(PerUnit)
}

func ToCurrency(coins decimal.Decimal) decimal.Decimal {
	return coins.Div(PerUnit)
}

// Discount returns how many coins are spent and the discount they buy for a
// purchase of total, given the available coin balance.
func Discount(total, available decimal.Decimal) (used, discount decimal.Decimal) {
	if !total.IsPositive() || !available.IsPositive() {
		return decimal.Zero, decimal.Zero
	}

	needed := total.Mul(MaxDiscountRate).Div(Value).Ceil()

	used = decimal.Min(needed, available.Floor())

	return used, used.Mul(Value)
}

// Earned returns the coins awarded for paying final: one coin per whole unit.
func Earned(final decimal.Decimal) decimal.Decimal {
	if !final.IsPositive() {
		return decimal.Zero
	}

	return final.Floor()
}
