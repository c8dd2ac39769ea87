package aggregate

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"neoswaps/internal/model"
)

const ratioScale = 18

// poolValue prices the reserves of a pool in collateral at its spot prices.
func poolValue(meta *model.PoolMeta) *big.Rat {
	if meta == nil {
		return nil
	}
	total := new(big.Rat)
	for asset, reserve := range meta.Reserves {
		price, ok := meta.SpotPrices[asset]
		if !ok {
			return nil
		}
		r, ok := new(big.Rat).SetString(reserve)
		if !ok {
			return nil
		}
		p, ok := new(big.Rat).SetString(price)
		if !ok {
			return nil
		}
		total.Add(total, r.Mul(r, p))
	}
	if total.Sign() == 0 {
		return nil
	}
	return total
}

func computeFeeRate(fees decimal.Decimal, value *big.Rat) *string {
	if fees.Sign() == 0 || value == nil || value.Sign() == 0 {
		return nil
	}
	feeRat, ok := new(big.Rat).SetString(fees.String())
	if !ok {
		return nil
	}
	rate := new(big.Rat).Quo(feeRat, value).FloatString(ratioScale)
	return &rate
}

func computeAPR(feeRate *string, windowSeconds uint64) *string {
	if windowSeconds == 0 || feeRate == nil {
		return nil
	}
	rat, ok := new(big.Rat).SetString(*feeRate)
	if !ok {
		return nil
	}
	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(rat, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
