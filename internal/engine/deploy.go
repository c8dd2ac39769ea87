package engine

import (
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/amm"
	"neoswaps/internal/fixed"
	"neoswaps/internal/liquiditytree"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

func (e *Engine) deployPool(cmd DeployPool) (Event, error) {
	m, err := e.activeMarket(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	if _, ok := e.pools[cmd.MarketID]; ok {
		return nil, fmt.Errorf("market %d: %w", cmd.MarketID, model.ErrDuplicatePool)
	}
	if len(cmd.SpotPrices) != int(m.Outcomes) {
		return nil, fmt.Errorf("%d spot prices for %d outcomes: %w", len(cmd.SpotPrices), m.Outcomes, model.ErrIncorrectVecLen)
	}
	if cmd.Amount == nil || cmd.Amount.IsZero() {
		return nil, model.ErrZeroAmount
	}
	if err := validateSpotPrices(cmd.SpotPrices); err != nil {
		return nil, err
	}
	if err := e.validateSwapFee(cmd.SwapFee); err != nil {
		return nil, err
	}

	liquidity, reserves, err := amm.CalculateReservesFromSpotPrices(cmd.Amount, cmd.SpotPrices)
	if err != nil {
		return nil, fmt.Errorf("deploy pool: %w", err)
	}
	if liquidity.Lt(minLiquidity) {
		return nil, fmt.Errorf("liquidity parameter %s: %w", fixed.Format(liquidity), model.ErrLiquidityTooLow)
	}

	if err := e.completeSets.BuyCompleteSet(cmd.Who, cmd.MarketID, cmd.Amount); err != nil {
		return nil, fmt.Errorf("deploy pool: %w", err)
	}
	accountID := pool.AccountIDFor(cmd.MarketID)
	reserveMap := make(map[model.Asset]*uint256.Int, len(reserves))
	for i, asset := range m.OutcomeAssets() {
		if err := e.ledger.Transfer(asset, cmd.Who, accountID, reserves[i]); err != nil {
			return nil, fmt.Errorf("fund pool reserve %s: %w", asset, err)
		}
		reserveMap[asset] = reserves[i]
	}

	tree, err := liquiditytree.New(e.cfg.MaxTreeDepth, cmd.Who, cmd.Amount)
	if err != nil {
		return nil, err
	}
	p := pool.New(cmd.MarketID, m.Collateral, reserveMap, liquidity, cmd.SwapFee, tree)
	e.pools[cmd.MarketID] = p

	return PoolDeployed{
		Who:                cmd.Who,
		MarketID:           cmd.MarketID,
		AccountID:          p.AccountID,
		Collateral:         p.Collateral,
		LiquidityParameter: fixed.Clone(liquidity),
		PoolSharesAmount:   fixed.Clone(cmd.Amount),
		AmountsIn:          reserves,
		SwapFee:            fixed.Clone(cmd.SwapFee),
		SpotPrices:         cloneAll(cmd.SpotPrices),
	}, nil
}

func validateSpotPrices(prices []*uint256.Int) error {
	sum := fixed.Zero()
	for i, price := range prices {
		if price.Lt(minSpotPrice) {
			return fmt.Errorf("spot price %d is %s: %w", i, fixed.Format(price), model.ErrSpotPriceBelowMin)
		}
		if price.Gt(maxSpotPrice) {
			return fmt.Errorf("spot price %d is %s: %w", i, fixed.Format(price), model.ErrSpotPriceAboveMax)
		}
		sum.Add(sum, price)
	}
	if !sum.Eq(fixed.Base()) {
		return fmt.Errorf("spot prices sum to %s: %w", fixed.Format(sum), model.ErrInvalidSpotPrices)
	}
	return nil
}

func (e *Engine) validateSwapFee(swapFee *uint256.Int) error {
	if swapFee == nil || swapFee.Lt(minSwapFee) {
		return fmt.Errorf("swap fee %s: %w", fixed.Format(swapFee), model.ErrSwapFeeBelowMin)
	}
	if swapFee.Gt(e.cfg.MaxSwapFee) {
		return fmt.Errorf("swap fee %s: %w", fixed.Format(swapFee), model.ErrSwapFeeAboveMax)
	}
	return nil
}

func cloneAll(values []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(values))
	for i, v := range values {
		out[i] = fixed.Clone(v)
	}
	return out
}
