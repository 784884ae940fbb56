package domain

import (
	"github.com/shopspring/decimal"
)

// Money is a decimal amount that renders with exactly two fraction digits.
// Arithmetic happens on the embedded Decimal at full precision; rounding
// happens only when the value is serialized.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{Decimal: d} }

// MustMoney parses a literal such as "1000.00". It panics on bad input and
// is meant for constants and tests.
func MustMoney(s string) Money { return Money{Decimal: decimal.RequireFromString(s)} }

func (m Money) String() string { return m.StringFixed(2) }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}

// MarshalText backs encoding/csv style writers and query encoders.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}
