package engine

import (
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/market"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

// FeeDistribution splits a gross trade amount.
type FeeDistribution struct {
	Remaining    *uint256.Int
	SwapFees     *uint256.Int
	ExternalFees *uint256.Int
}

// distributeFees charges the pool's swap fee and the external fees on amount, which
// must already sit in the pool account. Swap fees stay in the pool account and are
// credited to the liquidity tree.
func (e *Engine) distributeFees(p *pool.Pool, amount *uint256.Int) (FeeDistribution, error) {
	swapFees, err := fixed.MulFloor(p.SwapFee, amount)
	if err != nil {
		return FeeDistribution{}, err
	}
	if err := p.Tree.DepositFees(swapFees); err != nil {
		return FeeDistribution{}, fmt.Errorf("deposit swap fees: %w", err)
	}
	externalFees, err := e.externalFees.Distribute(p.MarketID, p.Collateral, p.AccountID, amount)
	if err != nil {
		return FeeDistribution{}, err
	}
	total, err := fixed.Add(swapFees, externalFees)
	if err != nil {
		return FeeDistribution{}, err
	}
	if total.Gt(amount) {
		return FeeDistribution{}, fmt.Errorf("fees %s exceed amount %s: %w", fixed.Format(total), fixed.Format(amount), model.ErrUnexpected)
	}
	return FeeDistribution{
		Remaining:    new(uint256.Int).Sub(amount, total),
		SwapFees:     swapFees,
		ExternalFees: externalFees,
	}, nil
}

func (e *Engine) tradeablePool(marketID uint64, assetCount uint16, asset model.Asset, amount *uint256.Int) (market.Market, *pool.Pool, error) {
	m, err := e.activeMarket(marketID)
	if err != nil {
		return market.Market{}, nil, err
	}
	if assetCount != m.Outcomes {
		return market.Market{}, nil, fmt.Errorf("asset count %d for %d outcomes: %w", assetCount, m.Outcomes, model.ErrIncorrectAssetCount)
	}
	p, err := e.pool(marketID)
	if err != nil {
		return market.Market{}, nil, err
	}
	if !p.Contains(asset) {
		return market.Market{}, nil, fmt.Errorf("asset %s: %w", asset, model.ErrAssetNotFound)
	}
	if amount == nil || amount.IsZero() {
		return market.Market{}, nil, model.ErrZeroAmount
	}
	return m, p, nil
}

func (e *Engine) buy(cmd Buy) (Event, error) {
	_, p, err := e.tradeablePool(cmd.MarketID, cmd.AssetCount, cmd.AssetOut, cmd.AmountIn)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Transfer(p.Collateral, cmd.Who, p.AccountID, cmd.AmountIn); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	split, err := e.distributeFees(p, cmd.AmountIn)
	if err != nil {
		return nil, err
	}
	amountOut, err := p.CalculateSwapAmountOutForBuy(cmd.AssetOut, split.Remaining)
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if cmd.MinAmountOut != nil && amountOut.Lt(cmd.MinAmountOut) {
		return nil, fmt.Errorf("amount out %s below %s: %w", fixed.Format(amountOut), fixed.Format(cmd.MinAmountOut), model.ErrAmountOutBelowMin)
	}

	if err := e.completeSets.BuyCompleteSet(p.AccountID, p.MarketID, split.Remaining); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if err := p.ApplyBuy(cmd.AssetOut, split.Remaining, amountOut); err != nil {
		return nil, err
	}
	if err := e.ledger.Transfer(cmd.AssetOut, p.AccountID, cmd.Who, amountOut); err != nil {
		return nil, fmt.Errorf("buy payout: %w", err)
	}

	return BuyExecuted{
		Who:               cmd.Who,
		MarketID:          cmd.MarketID,
		AssetOut:          cmd.AssetOut,
		AmountIn:          fixed.Clone(cmd.AmountIn),
		AmountOut:         amountOut,
		SwapFeeAmount:     split.SwapFees,
		ExternalFeeAmount: split.ExternalFees,
	}, nil
}

func (e *Engine) sell(cmd Sell) (Event, error) {
	_, p, err := e.tradeablePool(cmd.MarketID, cmd.AssetCount, cmd.AssetIn, cmd.AmountIn)
	if err != nil {
		return nil, err
	}

	if err := e.ledger.Transfer(cmd.AssetIn, cmd.Who, p.AccountID, cmd.AmountIn); err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	amountOut, err := p.CalculateSwapAmountOutForSell(cmd.AssetIn, cmd.AmountIn)
	if err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	if err := p.ApplySell(cmd.AssetIn, cmd.AmountIn, amountOut); err != nil {
		return nil, err
	}
	if err := e.completeSets.SellCompleteSet(p.AccountID, p.MarketID, amountOut); err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	split, err := e.distributeFees(p, amountOut)
	if err != nil {
		return nil, err
	}
	if cmd.MinAmountOut != nil && split.Remaining.Lt(cmd.MinAmountOut) {
		return nil, fmt.Errorf("amount out %s below %s: %w", fixed.Format(split.Remaining), fixed.Format(cmd.MinAmountOut), model.ErrAmountOutBelowMin)
	}
	if err := e.ledger.Transfer(p.Collateral, p.AccountID, cmd.Who, split.Remaining); err != nil {
		return nil, fmt.Errorf("sell payout: %w", err)
	}

	return SellExecuted{
		Who:               cmd.Who,
		MarketID:          cmd.MarketID,
		AssetIn:           cmd.AssetIn,
		AmountIn:          fixed.Clone(cmd.AmountIn),
		AmountOut:         split.Remaining,
		SwapFeeAmount:     split.SwapFees,
		ExternalFeeAmount: split.ExternalFees,
	}, nil
}
