// Package fixed implements fixed-point balance arithmetic with ten decimal places.
//
// Balances are unsigned 256-bit integers where Base() represents 1.0. Every
// multiplication or division names its rounding direction explicitly so call sites
// decide who absorbs the remainder.
package fixed

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"neoswaps/internal/model"
)

// Decimals is the number of fractional decimal digits of a balance.
const Decimals = 10

var base = uint256.NewInt(10_000_000_000)

// Base returns 1.0.
func Base() *uint256.Int {
	return new(uint256.Int).Set(base)
}

// Zero returns a fresh zero balance.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Units returns n whole units.
func Units(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), base)
}

// Fraction returns num/den of one unit, floor-rounded.
func Fraction(num, den uint64) *uint256.Int {
	v := new(uint256.Int).Mul(uint256.NewInt(num), base)
	return v.Div(v, uint256.NewInt(den))
}

// Clone copies v, treating nil as zero.
func Clone(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// Add returns a+b.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, fmt.Errorf("add overflow: %w", model.ErrMath)
	}
	return sum, nil
}

// Sub returns a-b.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, fmt.Errorf("sub underflow: %w", model.ErrMath)
	}
	return diff, nil
}

// MulFloor returns floor(a*b).
func MulFloor(a, b *uint256.Int) (*uint256.Int, error) {
	return mulDiv(a, b, base, false)
}

// MulCeil returns ceil(a*b).
func MulCeil(a, b *uint256.Int) (*uint256.Int, error) {
	return mulDiv(a, b, base, true)
}

// DivFloor returns floor(a/b).
func DivFloor(a, b *uint256.Int) (*uint256.Int, error) {
	return mulDiv(a, base, b, false)
}

// DivCeil returns ceil(a/b).
func DivCeil(a, b *uint256.Int) (*uint256.Int, error) {
	return mulDiv(a, base, b, true)
}

// MulDivFloor returns floor(x*y/d) on raw integers.
func MulDivFloor(x, y, d *uint256.Int) (*uint256.Int, error) {
	return mulDiv(x, y, d, false)
}

// MulDivCeil returns ceil(x*y/d) on raw integers.
func MulDivCeil(x, y, d *uint256.Int) (*uint256.Int, error) {
	return mulDiv(x, y, d, true)
}

func mulDiv(x, y, d *uint256.Int, ceil bool) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("division by zero: %w", model.ErrMath)
	}
	prod, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, fmt.Errorf("mul overflow: %w", model.ErrMath)
	}
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(prod, d, rem)
	if ceil && !rem.IsZero() {
		quo.AddUint64(quo, 1)
	}
	return quo, nil
}

// ToDecimal converts a balance to the decimal number it represents.
func ToDecimal(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), -Decimals)
}

// FromDecimalFloor converts a non-negative decimal to a balance, rounding down.
func FromDecimalFloor(d decimal.Decimal) (*uint256.Int, error) {
	return fromDecimal(d, false)
}

// FromDecimalCeil converts a non-negative decimal to a balance, rounding up.
func FromDecimalCeil(d decimal.Decimal) (*uint256.Int, error) {
	return fromDecimal(d, true)
}

func fromDecimal(d decimal.Decimal, ceil bool) (*uint256.Int, error) {
	if d.Sign() < 0 {
		return nil, fmt.Errorf("negative value %s: %w", d.String(), model.ErrMath)
	}
	scaled := d.Shift(Decimals)
	if ceil {
		scaled = scaled.Ceil()
	} else {
		scaled = scaled.Floor()
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("value %s does not fit: %w", d.String(), model.ErrNarrowingConversion)
	}
	return v, nil
}

// Parse reads a decimal string such as "0.01" into a balance, rounding down.
func Parse(input string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(input)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", input, err)
	}
	return FromDecimalFloor(d)
}

// Format renders a balance as a decimal string.
func Format(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return ToDecimal(v).String()
}
