// Package money holds the currency and rate primitives used by the payroll
// engine. Amounts are integer cents; rates are decimal fractions. No float64
// value ever represents currency.
package money

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Money is a signed amount in cents. Negative values represent corrections.
type Money int64

func Cents(c int64) Money { return Money(c) }

func Dollars(d int64) Money { return Money(d * 100) }

// Parse reads "1234.56", "-12.5" or "100" into cents. More than two fraction
// digits are rejected rather than rounded.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return 0, fmt.Errorf("amount %q has more than two decimal places", s)
	}
	return Money(d.Shift(2).IntPart()), nil
}

func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Int64() int64 { return int64(m) }

func (m Money) Add(o Money) Money { return m + o }
func (m Money) Sub(o Money) Money { return m - o }
func (m Money) Neg() Money        { return -m }
func (m Money) IsZero() bool      { return m == 0 }
func (m Money) IsPositive() bool  { return m > 0 }
func (m Money) IsNegative() bool  { return m < 0 }

func (m Money) Min(o Money) Money {
	if m < o {
		return m
	}
	return o
}

func (m Money) Max(o Money) Money {
	if m > o {
		return m
	}
	return o
}

// NonNegative clamps m at zero.
func (m Money) NonNegative() Money { return m.Max(0) }

func (m Money) Decimal() decimal.Decimal { return decimal.New(int64(m), -2) }

// MulPercent rounds half away from zero to the cent.
func (m Money) MulPercent(p Percent) Money {
	return FromDecimalRounded(decimal.NewFromInt(int64(m)).Mul(p.d).Shift(-2))
}

// MulPercentFloor truncates toward negative infinity.
func (m Money) MulPercentFloor(p Percent) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(p.d).Floor().IntPart())
}

// MulDecimalFloor multiplies by an arbitrary factor (hours, fractions) and floors.
func (m Money) MulDecimalFloor(f decimal.Decimal) Money {
	return Money(decimal.NewFromInt(int64(m)).Mul(f).Floor().IntPart())
}

// MulDecimal multiplies by an arbitrary factor and rounds half away from zero.
func (m Money) MulDecimal(f decimal.Decimal) Money {
	return FromDecimalRounded(decimal.NewFromInt(int64(m)).Mul(f).Shift(-2))
}

// FromDecimalRounded converts a dollar amount to cents, rounding half away
// from zero.
func FromDecimalRounded(dollars decimal.Decimal) Money {
	return Money(dollars.Shift(2).Round(0).IntPart())
}

// FromDecimalTruncated converts a dollar amount to cents, dropping fractional
// cents toward zero.
func FromDecimalTruncated(dollars decimal.Decimal) Money {
	return Money(dollars.Shift(2).Truncate(0).IntPart())
}

// String renders plain dollars with two decimals, e.g. "-1234.50".
func (m Money) String() string {
	sign := ""
	c := int64(m)
	if c < 0 {
		sign = "-"
		c = -c
	}
	return sign + strconv.FormatInt(c/100, 10) + "." + fmt.Sprintf("%02d", c%100)
}

// Format renders a display amount with grouping, e.g. "$1,234.50".
func (m Money) Format() string {
	c := int64(m)
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(c/100), c%100)
}

// Sum adds amounts in order.
func Sum(amounts ...Money) Money {
	var total Money
	for _, a := range amounts {
		total += a
	}
	return total
}
