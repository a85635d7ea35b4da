// Package types provides the numeric types used by the stock ledger.
//
// All monetary values and quantities are decimal.Decimal end-to-end.
// Binary floating point would violate the rounding laws of the WAC and
// reconciliation formulas, so float64 never touches ledger math.
package types

import (
	"github.com/shopspring/decimal"
)

// Money is a monetary value. Persisted as NUMERIC(15,2), rounded with
// RoundMoney at document boundaries.
type Money = decimal.Decimal

// Quantity is a stock quantity. Persisted as NUMERIC(15,4); up to four
// fractional digits survive rounding.
type Quantity = decimal.Decimal

const (
	// MoneyScale is the number of decimal places for monetary values.
	MoneyScale int32 = 2

	// QuantityScale is the number of decimal places for quantities.
	QuantityScale int32 = 4
)

// Zero returns the zero decimal value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// MustDecimal parses a decimal from string, panics on error.
// Use only for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// RoundMoney rounds a monetary value to 2 decimal places (half up).
func RoundMoney(d decimal.Decimal) Money {
	return d.Round(MoneyScale)
}

// RoundQuantity rounds a quantity to 4 decimal places (half up).
func RoundQuantity(d decimal.Decimal) Quantity {
	return d.Round(QuantityScale)
}

// RoundUnitCost rounds a per-unit cost (WAC, unit prices) to 4 decimal
// places. Per-unit costs keep extra precision; only document totals and
// valuations collapse to money precision.
func RoundUnitCost(d decimal.Decimal) Money {
	return d.Round(QuantityScale)
}

// IsPositive reports whether d > 0.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// IsNegative reports whether d < 0.
func IsNegative(d decimal.Decimal) bool {
	return d.Sign() < 0
}

// PercentOf returns part/whole × 100 rounded to 2 decimal places,
// or zero when whole is zero.
func PercentOf(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(MoneyScale)
}
