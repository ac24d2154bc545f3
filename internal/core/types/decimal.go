// Package types provides common numeric types and helpers.
package types

import (
	"math"

	"github.com/shopspring/decimal"
)

// Quantity is an amount of stock expressed in a product's base unit.
// Uses decimal.Decimal so batch arithmetic never drifts.
type Quantity = decimal.Decimal

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// QuantityScale is the number of fractional digits kept for quantities.
// Matches the UnitConverter rounding policy.
const QuantityScale int32 = 6

// MoneyScale is the number of fractional digits kept for reported costs.
const MoneyScale int32 = 4

func init() {
	// JSON stays a number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

// NewQuantity converts a float (typically a UnitConverter result) into a
// Quantity rounded to QuantityScale.
func NewQuantity(v float64) Quantity {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(QuantityScale)
}

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// RoundMoney rounds a monetary amount to MoneyScale.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// MinQuantity returns the smaller of a and b.
func MinQuantity(a, b Quantity) Quantity {
	if a.LessThan(b) {
		return a
	}
	return b
}
