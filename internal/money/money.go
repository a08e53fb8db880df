// Package money holds the rounding policy for currency amounts.
//
// Amounts carry two decimal places. Rounding is half-up (half away from zero,
// which is the same thing for the non-negative amounts the marketplace deals
// in) and happens once, on the final sum.
package money

import "github.com/shopspring/decimal"

const Places = 2

// Amount is a decimal that always renders with two places, in JSON and in
// logs. Arithmetic, Scan and UnmarshalJSON come from the embedded decimal.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// RequireAmount parses s and panics on malformed input. Fixtures and seed data only.
func RequireAmount(s string) Amount {
	return Amount{Decimal: decimal.RequireFromString(s)}
}

func (a Amount) String() string {
	return a.StringFixed(Places)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.StringFixed(Places) + `"`), nil
}

func (a Amount) Equal(b Amount) bool {
	return a.Decimal.Equal(b.Decimal)
}

func Round(a Amount) Amount {
	return Amount{Decimal: a.Decimal.Round(Places)}
}

func LineTotal(unitPrice Amount, quantity int) Amount {
	return Amount{Decimal: unitPrice.Mul(decimal.NewFromInt(int64(quantity)))}
}

// Total sums price × quantity over lines and rounds the result.
func Total[T any](lines []T, price func(T) Amount, quantity func(T) int) Amount {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(LineTotal(price(l), quantity(l)).Decimal)
	}
	return Round(Amount{Decimal: sum})
}
