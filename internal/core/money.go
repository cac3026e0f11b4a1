// Package core provides money parsing and handling utilities.
//
// Amounts are kept as signed integer cents. Parsing goes through
// shopspring/decimal so that values like "-85.20" or "1e3" never pass
// through a float.
package core

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// MoneyFromDecimal rounds d half away from zero to whole cents.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// ParseAmount parses a signed ledger amount such as "-85.20", "+12", "1e3".
// Surrounding whitespace is ignored. Thousands separators are not accepted.
// The result is rounded to whole cents, so "-0.004" parses as zero.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.TrimPrefix(s, "+")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return MoneyFromDecimal(d), nil
}

// ParseDecimalToCents converts user-entered budget text to cents.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators; when both
// appear, commas are read as thousands separators (1,234.56). Values are
// rounded half-up to cents. Negative values are rejected, zero is allowed.
//
// Examples:
//
//	ParseDecimalToCents("300")      -> 30000, nil
//	ParseDecimalToCents("12,34")    -> 1234, nil
//	ParseDecimalToCents("1,234.56") -> 123456, nil
//	ParseDecimalToCents("12.346")   -> 1235, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64 / 100)) {
		return 0, ErrInvalidAmount
	}
	return MoneyFromDecimal(d).Cents, nil
}

// Decimal returns the exact decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float64 returns the value as a float for ratios and display.
// Use cents for sums.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

func (m Money) IsNegative() bool {
	return m.Cents < 0
}

// Ratio returns min(1, m/limit), or 0 when limit is not positive.
func (m Money) Ratio(limit Money) float64 {
	if limit.Cents <= 0 {
		return 0.0
	}
	return math.Min(1.0, float64(m.Cents)/float64(limit.Cents))
}

// String formats as dollars with thousands grouping, e.g. "$3,132.12", "-$85.20".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", float64(cents)/100.0)
}

// Fixed formats the plain decimal with two places, e.g. "-85.20".
func (m Money) Fixed() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Fixed()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" || s == "" {
		*m = Money{}
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
