// Package money provides the fixed-point amount and percentage types used by
// the split reconciliation engine. Amounts are stored with four fractional
// digits and all arithmetic is exact; rounding happens once, at the display
// boundary, never mid-calculation.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits an Amount carries.
const Scale = 4

// Amount is an exact fixed-point monetary value. The zero value is zero
// dollars and is ready to use.
type Amount struct {
	d decimal.Decimal
}

// New parses a decimal string into an Amount. Inputs with more than Scale
// fractional digits are rejected rather than silently rounded.
func New(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	if d.Exponent() < -Scale {
		return Amount{}, fmt.Errorf("money: %q exceeds %d fractional digits", s, Scale)
	}
	return Amount{d: d}, nil
}

// MustNew is New for test fixtures and constants; it panics on invalid input.
func MustNew(s string) Amount {
	a, err := New(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromDecimal wraps an already-validated decimal, rounding half-even to
// Scale. Use at data-access boundaries where the source column is wider.
func FromDecimal(d decimal.Decimal) Amount {
	if d.Exponent() < -Scale {
		d = d.RoundBank(Scale)
	}
	return Amount{d: d}
}

// FromMinorUnits converts an integer count of cents into an Amount.
func FromMinorUnits(cents int64) Amount {
	return Amount{d: decimal.New(cents, -2)}
}

// Zero returns the zero Amount.
func Zero() Amount { return Amount{} }

// Add returns a + b exactly.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub returns a - b exactly.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Neg returns -a.
func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }

// MulPercent applies a fractional percentage to the amount, rounding
// half-even to Scale. This is the single rounding point of the engine:
// applying a four-digit fraction to a four-digit amount is the only
// operation whose exact result can exceed the stored precision.
func (a Amount) MulPercent(p Percent) Amount {
	return Amount{d: a.d.Mul(p.d).RoundBank(Scale)}
}

// Cmp compares two amounts: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Equal reports whether two amounts represent the same value.
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.d.IsZero() }

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a.d.IsNegative() }

// Decimal exposes the underlying decimal for persistence layers.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// String renders the exact stored value.
func (a Amount) String() string { return a.d.String() }

// Display rounds half-even to two fractional digits for presentation.
// Callers format the result; the engine itself never works at this scale.
func (a Amount) Display() string { return a.d.RoundBank(2).StringFixed(2) }

// Float64 returns an approximate binary value for display-layer consumers
// such as number formatters. Never feed the result back into the engine.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.d.String() + `"`), nil
}

// UnmarshalJSON decodes a decimal string or bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("money: unmarshal amount: %w", err)
	}
	if d.Exponent() < -Scale {
		return fmt.Errorf("money: amount %s exceeds %d fractional digits", d, Scale)
	}
	*a = Amount{d: d}
	return nil
}

// Sum adds a sequence of amounts exactly.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
