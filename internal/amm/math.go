// Package amm implements the neo-swaps pricing curve.
//
// For an outcome with reserve r in a pool with liquidity parameter b the spot price is
// exp(-r/b), and the spot prices of all outcomes of a pool sum to one. Buying spends x
// of collateral on x complete sets and lets the pool keep enough of the bought outcome
// to restore that invariant. Selling is the mirror image.
//
// Transcendental functions are evaluated with shopspring/decimal at a fixed precision
// so results are deterministic across platforms.
package amm

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

// precision is the number of fractional digits kept in intermediate results.
const precision int32 = 28

const expNumericalLimit = 10

var (
	one = decimal.NewFromInt(1)

	// ExpNumericalLimit bounds x/b for every exponent evaluated by the curve.
	ExpNumericalLimit = decimal.NewFromInt(expNumericalLimit)
	// LnNumericalLimit is the smallest argument passed to ln by the buy formula.
	LnNumericalLimit = decimal.New(1, -5)
)

// CalculateSwapAmountOutForBuy returns the amount of the bought outcome paid out
// for amountIn collateral (already net of fees):
//
//	y = r + b*ln(exp(x/b) - 1 + exp(-r/b))
//
// The result is floor-rounded.
func CalculateSwapAmountOutForBuy(reserve, amountIn, liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.IsZero() {
		return nil, fmt.Errorf("zero liquidity: %w", model.ErrMath)
	}
	r, x, b := fixed.ToDecimal(reserve), fixed.ToDecimal(amountIn), fixed.ToDecimal(liquidity)

	xOverB := x.DivRound(b, precision)
	if xOverB.GreaterThan(ExpNumericalLimit) {
		return nil, model.ErrMaxAmountExceeded
	}
	expX, err := exp(xOverB)
	if err != nil {
		return nil, err
	}
	expR, err := exp(r.DivRound(b, precision).Neg())
	if err != nil {
		return nil, err
	}
	arg := expX.Sub(one).Add(expR)
	if arg.LessThan(LnNumericalLimit) {
		return nil, model.ErrMinAmountNotMet
	}
	lnArg, err := ln(arg)
	if err != nil {
		return nil, err
	}
	y := r.Add(b.Mul(lnArg))
	return fixed.FromDecimalFloor(y)
}

// CalculateSwapAmountOutForSell returns the collateral (before fees) paid out for
// selling amountIn units of an outcome with the given reserve:
//
//	y = -b*ln(exp(-(r+x)/b) + 1 - exp(-r/b))
//
// The result is floor-rounded. Both the current and the resulting spot price must
// stay at or above exp(-10).
func CalculateSwapAmountOutForSell(reserve, amountIn, liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.IsZero() {
		return nil, fmt.Errorf("zero liquidity: %w", model.ErrMath)
	}
	if belowMinSpotPrice(reserve, liquidity) {
		return nil, model.ErrSpotPriceTooLow
	}
	r, x, b := fixed.ToDecimal(reserve), fixed.ToDecimal(amountIn), fixed.ToDecimal(liquidity)

	if x.DivRound(b, precision).GreaterThan(ExpNumericalLimit) {
		return nil, model.ErrMaxAmountExceeded
	}
	price, err := exp(r.DivRound(b, precision).Neg())
	if err != nil {
		return nil, err
	}
	expRX, err := exp(r.Add(x).DivRound(b, precision).Neg())
	if err != nil {
		return nil, err
	}
	lnArg, err := ln(expRX.Add(one).Sub(price))
	if err != nil {
		return nil, err
	}
	out, err := fixed.FromDecimalFloor(b.Mul(lnArg).Neg())
	if err != nil {
		return nil, err
	}

	newReserve, err := fixed.Add(reserve, amountIn)
	if err != nil {
		return nil, err
	}
	newReserve, err = fixed.Sub(newReserve, out)
	if err != nil {
		return nil, err
	}
	if belowMinSpotPrice(newReserve, liquidity) {
		return nil, model.ErrSpotPriceSlippedTooLow
	}
	return out, nil
}

// CalculateSpotPrice returns exp(-reserve/liquidity), floor-rounded.
func CalculateSpotPrice(reserve, liquidity *uint256.Int) (*uint256.Int, error) {
	if liquidity.IsZero() {
		return nil, fmt.Errorf("zero liquidity: %w", model.ErrMath)
	}
	ratio := fixed.ToDecimal(reserve).DivRound(fixed.ToDecimal(liquidity), precision)
	price, err := exp(ratio.Neg())
	if err != nil {
		return nil, err
	}
	return fixed.FromDecimalFloor(price)
}

// CalculateReservesFromSpotPrices solves for the liquidity parameter and reserves of a
// pool funded with amount complete sets whose spot prices are the given ones. The
// cheapest outcome receives (up to rounding) the whole amount:
//
//	b = amount / -ln(min price),  r_i = -b*ln(p_i)
//
// Both b and the reserves are floor-rounded.
func CalculateReservesFromSpotPrices(amount *uint256.Int, spotPrices []*uint256.Int) (*uint256.Int, []*uint256.Int, error) {
	if len(spotPrices) == 0 {
		return nil, nil, fmt.Errorf("no spot prices: %w", model.ErrUnexpected)
	}
	minPrice := spotPrices[0]
	for _, p := range spotPrices[1:] {
		if p.Lt(minPrice) {
			minPrice = p
		}
	}
	lnMin, err := ln(fixed.ToDecimal(minPrice))
	if err != nil {
		return nil, nil, err
	}
	if lnMin.Sign() >= 0 {
		return nil, nil, fmt.Errorf("min spot price must be below one: %w", model.ErrMath)
	}
	liquidity, err := fixed.FromDecimalFloor(fixed.ToDecimal(amount).DivRound(lnMin.Neg(), precision))
	if err != nil {
		return nil, nil, err
	}
	b := fixed.ToDecimal(liquidity)

	reserves := make([]*uint256.Int, 0, len(spotPrices))
	for _, p := range spotPrices {
		lnP, err := ln(fixed.ToDecimal(p))
		if err != nil {
			return nil, nil, err
		}
		reserve, err := fixed.FromDecimalFloor(b.Mul(lnP).Neg())
		if err != nil {
			return nil, nil, err
		}
		if reserve.Gt(amount) {
			reserve = fixed.Clone(amount)
		}
		reserves = append(reserves, reserve)
	}
	return liquidity, reserves, nil
}

// belowMinSpotPrice reports exp(-reserve/liquidity) < exp(-10), i.e. reserve > 10*liquidity.
func belowMinSpotPrice(reserve, liquidity *uint256.Int) bool {
	limit, overflow := new(uint256.Int).MulOverflow(liquidity, uint256.NewInt(expNumericalLimit))
	if overflow {
		return false
	}
	return reserve.Gt(limit)
}

func exp(x decimal.Decimal) (decimal.Decimal, error) {
	if x.Sign() < 0 {
		pos, err := x.Neg().ExpTaylor(precision)
		if err != nil {
			return decimal.Zero, fmt.Errorf("exp(%s): %v: %w", x.String(), err, model.ErrMath)
		}
		return one.DivRound(pos, precision), nil
	}
	v, err := x.ExpTaylor(precision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("exp(%s): %v: %w", x.String(), err, model.ErrMath)
	}
	return v, nil
}

func ln(x decimal.Decimal) (decimal.Decimal, error) {
	if x.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("ln of non-positive %s: %w", x.String(), model.ErrMath)
	}
	if x.LessThan(one) {
		inv := one.DivRound(x, precision)
		v, err := inv.Ln(precision)
		if err != nil {
			return decimal.Zero, fmt.Errorf("ln(%s): %v: %w", x.String(), err, model.ErrMath)
		}
		return v.Neg(), nil
	}
	v, err := x.Ln(precision)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ln(%s): %v: %w", x.String(), err, model.ErrMath)
	}
	return v, nil
}
