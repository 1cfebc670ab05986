// Package pricing converts per-500-unit listing prices into line totals and
// display strings.
package pricing

import (
	"github.com/shopspring/decimal"
)

// UnitBase is the quantity a listing price is quoted for.
const UnitBase = 500

var unitBase = decimal.NewFromInt(UnitBase)

// LineTotal returns price * quantity / 500 without rounding.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Div(unitBase)
}

// UnitPrice returns the price of a single quantity unit.
func UnitPrice(price decimal.Decimal) decimal.Decimal {
	return price.Div(unitBase)
}

// FormatUnitPrice renders a per-unit price with 4 decimals below one currency
// unit and 2 decimals otherwise.
func FormatUnitPrice(price decimal.Decimal) string {
	unit := UnitPrice(price)
	if unit.LessThan(decimal.NewFromInt(1)) {
		return unit.StringFixed(4)
	}
	return unit.StringFixed(2)
}

// FormatTotal renders a monetary amount for display.
func FormatTotal(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
