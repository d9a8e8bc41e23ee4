package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Percent is a revenue share expressed as a fraction in [0, 1]. The source
// data mixes fraction and whole-number conventions (0.30 vs 30); the
// canonical internal form is the fraction, and Normalize is the only place
// the whole-number convention is accepted.
type Percent struct {
	d decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// NewPercent parses a fraction in [0, 1].
func NewPercent(s string) (Percent, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Percent{}, fmt.Errorf("money: parse percent %q: %w", s, err)
	}
	return PercentFromDecimal(d)
}

// MustPercent is NewPercent for fixtures; it panics on invalid input.
func MustPercent(s string) Percent {
	p, err := NewPercent(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PercentFromDecimal validates a fraction in [0, 1].
func PercentFromDecimal(d decimal.Decimal) (Percent, error) {
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return Percent{}, fmt.Errorf("money: percent %s outside [0,1]", d)
	}
	return Percent{d: d}, nil
}

// NormalizePercent accepts either convention found in upstream data:
// fractions in [0, 1] pass through, whole-number percentages in (1, 100]
// are divided by 100. Anything else is rejected.
func NormalizePercent(d decimal.Decimal) (Percent, error) {
	if d.IsNegative() {
		return Percent{}, fmt.Errorf("money: percent %s is negative", d)
	}
	if d.LessThanOrEqual(decimal.NewFromInt(1)) {
		return Percent{d: d}, nil
	}
	if d.LessThanOrEqual(hundred) {
		return Percent{d: d.Div(hundred)}, nil
	}
	return Percent{}, fmt.Errorf("money: percent %s outside [0,100]", d)
}

// FullShare is the whole of the revenue, i.e. 100%.
var FullShare = Percent{d: decimal.NewFromInt(1)}

// Complement returns 1 - p, the counterpart share.
func (p Percent) Complement() Percent {
	return Percent{d: decimal.NewFromInt(1).Sub(p.d)}
}

// Equal reports whether two percentages represent the same fraction.
func (p Percent) Equal(q Percent) bool { return p.d.Equal(q.d) }

// Decimal exposes the underlying fraction for persistence layers.
func (p Percent) Decimal() decimal.Decimal { return p.d }

// String renders the fraction, e.g. "0.3".
func (p Percent) String() string { return p.d.String() }

// MarshalJSON encodes the fraction as a decimal string.
func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.d.String() + `"`), nil
}

// UnmarshalJSON decodes and normalizes a percentage from either convention.
func (p *Percent) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("money: unmarshal percent: %w", err)
	}
	normalized, err := NormalizePercent(d)
	if err != nil {
		return err
	}
	*p = normalized
	return nil
}
