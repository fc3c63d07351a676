// Package money renders decimal amounts through go-money currencies.
package money

import (
	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// INR is the billing currency of service requests.
const INR = gomoney.INR

// FromDecimal converts amount to minor units of code, rounding half away
// from zero at the currency's fraction.
func FromDecimal(amount decimal.Decimal, code string) *gomoney.Money {
	fraction := int32(2)
	if c := gomoney.GetCurrency(code); c != nil {
		fraction = int32(c.Fraction)
	}
	return gomoney.New(amount.Shift(fraction).Round(0).IntPart(), code)
}

// Format renders amount with the currency grapheme and grouping, e.g. ₹1,499.50.
func Format(amount decimal.Decimal, code string) string {
	return FromDecimal(amount, code).Display()
}
