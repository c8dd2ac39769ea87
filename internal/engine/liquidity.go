package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"neoswaps/internal/fixed"
	"neoswaps/internal/market"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

func (e *Engine) join(cmd Join) (Event, error) {
	if _, err := e.activeMarket(cmd.MarketID); err != nil {
		return nil, err
	}
	p, err := e.pool(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	assets := p.Assets()
	if len(cmd.MaxAmountsIn) != len(assets) {
		return nil, fmt.Errorf("%d max amounts for %d assets: %w", len(cmd.MaxAmountsIn), len(assets), model.ErrIncorrectVecLen)
	}
	if cmd.PoolSharesAmount == nil || cmd.PoolSharesAmount.IsZero() {
		return nil, model.ErrZeroAmount
	}

	ratio, err := fixed.DivCeil(cmd.PoolSharesAmount, p.Tree.TotalShares())
	if err != nil {
		return nil, err
	}
	if !p.Tree.Contains(cmd.Who) && ratio.Lt(minRelativeLPPositionValue) {
		return nil, fmt.Errorf("join ratio %s: %w", fixed.Format(ratio), model.ErrMinRelativeLiquidityThresholdViolated)
	}

	amountsIn := make([]*uint256.Int, 0, len(assets))
	for i, asset := range assets {
		reserve, err := p.Reserve(asset)
		if err != nil {
			return nil, err
		}
		amountIn, err := fixed.MulCeil(ratio, reserve)
		if err != nil {
			return nil, err
		}
		if amountIn.Gt(cmd.MaxAmountsIn[i]) {
			return nil, fmt.Errorf("%s amount in %s above %s: %w", asset, fixed.Format(amountIn), fixed.Format(cmd.MaxAmountsIn[i]), model.ErrAmountInAboveMax)
		}
		if err := e.ledger.Transfer(asset, cmd.Who, p.AccountID, amountIn); err != nil {
			return nil, fmt.Errorf("join: %w", err)
		}
		if err := p.IncreaseReserve(asset, amountIn); err != nil {
			return nil, err
		}
		amountsIn = append(amountsIn, amountIn)
	}

	delta, err := fixed.MulCeil(ratio, p.LiquidityParameter)
	if err != nil {
		return nil, err
	}
	if p.LiquidityParameter, err = fixed.Add(p.LiquidityParameter, delta); err != nil {
		return nil, err
	}
	if _, err := p.Tree.Join(cmd.Who, cmd.PoolSharesAmount); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	return JoinExecuted{
		Who:                   cmd.Who,
		MarketID:              cmd.MarketID,
		PoolSharesAmount:      fixed.Clone(cmd.PoolSharesAmount),
		AmountsIn:             amountsIn,
		NewLiquidityParameter: fixed.Clone(p.LiquidityParameter),
	}, nil
}

func (e *Engine) exit(cmd Exit) (Event, error) {
	p, err := e.pool(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	m, err := e.markets.Market(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	assets := p.Assets()
	if len(cmd.MinAmountsOut) != len(assets) {
		return nil, fmt.Errorf("%d min amounts for %d assets: %w", len(cmd.MinAmountsOut), len(assets), model.ErrIncorrectVecLen)
	}
	if cmd.PoolSharesAmount == nil || cmd.PoolSharesAmount.IsZero() {
		return nil, model.ErrZeroAmount
	}
	owned, err := p.Tree.SharesOf(cmd.Who)
	if err != nil {
		return nil, fmt.Errorf("exit: %w", err)
	}
	if owned.Lt(cmd.PoolSharesAmount) {
		return nil, fmt.Errorf("exit %s of %s shares: %w", fixed.Format(cmd.PoolSharesAmount), fixed.Format(owned), model.ErrInsufficientStake)
	}

	feesWithdrawn, err := e.payOutFees(p, cmd.Who)
	if err != nil {
		return nil, err
	}

	ratio, err := fixed.DivFloor(cmd.PoolSharesAmount, p.Tree.TotalShares())
	if err != nil {
		return nil, err
	}
	if m.Status != market.Resolved {
		if ratio, err = fixed.MulFloor(ratio, new(uint256.Int).Sub(fixed.Base(), exitFee)); err != nil {
			return nil, err
		}
	}

	amountsOut := make([]*uint256.Int, 0, len(assets))
	for i, asset := range assets {
		reserve, err := p.Reserve(asset)
		if err != nil {
			return nil, err
		}
		amountOut, err := fixed.MulFloor(ratio, reserve)
		if err != nil {
			return nil, err
		}
		if amountOut.Lt(cmd.MinAmountsOut[i]) {
			return nil, fmt.Errorf("%s amount out %s below %s: %w", asset, fixed.Format(amountOut), fixed.Format(cmd.MinAmountsOut[i]), model.ErrAmountOutBelowMin)
		}
		if err := p.DecreaseReserve(asset, amountOut); err != nil {
			return nil, err
		}
		if err := e.ledger.Transfer(asset, p.AccountID, cmd.Who, amountOut); err != nil {
			return nil, fmt.Errorf("exit payout: %w", err)
		}
		amountsOut = append(amountsOut, amountOut)
	}

	if err := p.Tree.Exit(cmd.Who, cmd.PoolSharesAmount); err != nil {
		return nil, fmt.Errorf("exit: %w", err)
	}

	if p.Tree.TotalShares().IsZero() {
		swept, err := e.ledger.Sweep(p.AccountID, e.cfg.ExitFeeSink)
		if err != nil {
			return nil, fmt.Errorf("sweep pool account: %w", err)
		}
		delete(e.pools, cmd.MarketID)
		e.logger.Info("pool destroyed", zap.Uint64("market_id", cmd.MarketID), zap.Int("swept_assets", len(swept)))
		return PoolDestroyed{
			Who:              cmd.Who,
			MarketID:         cmd.MarketID,
			PoolSharesAmount: fixed.Clone(cmd.PoolSharesAmount),
			AmountsOut:       amountsOut,
			FeesWithdrawn:    feesWithdrawn,
			Swept:            swept,
		}, nil
	}

	delta, err := fixed.MulFloor(ratio, p.LiquidityParameter)
	if err != nil {
		return nil, err
	}
	if p.LiquidityParameter, err = fixed.Sub(p.LiquidityParameter, delta); err != nil {
		return nil, err
	}
	if p.LiquidityParameter.Lt(minLiquidity) {
		return nil, fmt.Errorf("liquidity parameter %s: %w", fixed.Format(p.LiquidityParameter), model.ErrLiquidityTooLow)
	}
	if p.Tree.Contains(cmd.Who) {
		remaining, err := p.Tree.SharesOf(cmd.Who)
		if err != nil {
			return nil, err
		}
		relative, err := fixed.DivFloor(remaining, p.Tree.TotalShares())
		if err != nil {
			return nil, err
		}
		if relative.Lt(minRelativeLPPositionValue) {
			return nil, fmt.Errorf("remaining position %s: %w", fixed.Format(relative), model.ErrMinRelativeLiquidityThresholdViolated)
		}
	}

	return ExitExecuted{
		Who:                   cmd.Who,
		MarketID:              cmd.MarketID,
		PoolSharesAmount:      fixed.Clone(cmd.PoolSharesAmount),
		AmountsOut:            amountsOut,
		NewLiquidityParameter: fixed.Clone(p.LiquidityParameter),
		FeesWithdrawn:         feesWithdrawn,
	}, nil
}

func (e *Engine) withdrawFees(cmd WithdrawFees) (Event, error) {
	p, err := e.pool(cmd.MarketID)
	if err != nil {
		return nil, err
	}
	amount, err := e.payOutFees(p, cmd.Who)
	if err != nil {
		return nil, err
	}
	return FeesWithdrawn{Who: cmd.Who, MarketID: cmd.MarketID, Amount: amount}, nil
}

// payOutFees settles the fees owed to who and moves them out of the pool account.
func (e *Engine) payOutFees(p *pool.Pool, who common.Address) (*uint256.Int, error) {
	amount, err := p.Tree.WithdrawFees(who)
	if err != nil {
		return nil, fmt.Errorf("withdraw fees: %w", err)
	}
	if err := e.ledger.Transfer(p.Collateral, p.AccountID, who, amount); err != nil {
		return nil, fmt.Errorf("withdraw fees: %w", err)
	}
	return amount, nil
}
