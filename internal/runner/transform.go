package runner

import (
	"fmt"

	"github.com/holiman/uint256"

	"neoswaps/internal/engine"
	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

func buildJournalEntry(record model.CommandRecord, event engine.Event, p *pool.Pool) (model.JournalEntry, error) {
	entry := model.JournalEntry{
		Seq:       record.Seq,
		Op:        record.Op,
		Timestamp: record.Timestamp,
		EventName: event.Name(),
		MarketID:  event.Market(),
		Payload:   eventPayload(event),
	}
	if p != nil {
		meta, err := buildPoolMeta(p)
		if err != nil {
			return model.JournalEntry{}, err
		}
		entry.PoolMeta = meta
	}
	return entry, nil
}

func eventPayload(event engine.Event) interface{} {
	switch e := event.(type) {
	case engine.MarketCreated:
		return model.MarketEventData{Creator: e.Creator.Hex(), Collateral: e.Collateral.String(), Outcomes: e.Outcomes}
	case engine.MarketResolved:
		outcome := int(e.Outcome)
		return model.MarketEventData{Resolved: &outcome}
	case engine.Funded:
		return model.TransferEventData{Who: e.Who.Hex(), Asset: e.Asset.String(), Amount: fixed.Format(e.Amount)}
	case engine.CompleteSetBought:
		return model.TransferEventData{Who: e.Who.Hex(), Asset: fmt.Sprintf("complete_set:%d", e.MarketID), Amount: fixed.Format(e.Amount)}
	case engine.CompleteSetSold:
		return model.TransferEventData{Who: e.Who.Hex(), Asset: fmt.Sprintf("complete_set:%d", e.MarketID), Amount: fixed.Format(e.Amount)}
	case engine.PoolDeployed:
		return model.PoolDeployedEventData{
			Who:                e.Who.Hex(),
			AccountID:          e.AccountID.Hex(),
			Collateral:         e.Collateral.String(),
			LiquidityParameter: fixed.Format(e.LiquidityParameter),
			PoolSharesAmount:   fixed.Format(e.PoolSharesAmount),
			AmountsIn:          formatAll(e.AmountsIn),
			SwapFee:            fixed.Format(e.SwapFee),
			SpotPrices:         formatAll(e.SpotPrices),
		}
	case engine.BuyExecuted:
		return model.TradeEventData{
			Who:               e.Who.Hex(),
			Asset:             e.AssetOut.String(),
			AmountIn:          fixed.Format(e.AmountIn),
			AmountOut:         fixed.Format(e.AmountOut),
			SwapFeeAmount:     fixed.Format(e.SwapFeeAmount),
			ExternalFeeAmount: fixed.Format(e.ExternalFeeAmount),
		}
	case engine.SellExecuted:
		return model.TradeEventData{
			Who:               e.Who.Hex(),
			Asset:             e.AssetIn.String(),
			AmountIn:          fixed.Format(e.AmountIn),
			AmountOut:         fixed.Format(e.AmountOut),
			SwapFeeAmount:     fixed.Format(e.SwapFeeAmount),
			ExternalFeeAmount: fixed.Format(e.ExternalFeeAmount),
		}
	case engine.JoinExecuted:
		return model.LiquidityEventData{
			Who:                   e.Who.Hex(),
			PoolSharesAmount:      fixed.Format(e.PoolSharesAmount),
			Amounts:               formatAll(e.AmountsIn),
			NewLiquidityParameter: fixed.Format(e.NewLiquidityParameter),
		}
	case engine.ExitExecuted:
		return model.LiquidityEventData{
			Who:                   e.Who.Hex(),
			PoolSharesAmount:      fixed.Format(e.PoolSharesAmount),
			Amounts:               formatAll(e.AmountsOut),
			NewLiquidityParameter: fixed.Format(e.NewLiquidityParameter),
			FeesWithdrawn:         fixed.Format(e.FeesWithdrawn),
		}
	case engine.PoolDestroyed:
		swept := make(map[string]string, len(e.Swept))
		for asset, amount := range e.Swept {
			swept[asset.String()] = fixed.Format(amount)
		}
		return model.LiquidityEventData{
			Who:              e.Who.Hex(),
			PoolSharesAmount: fixed.Format(e.PoolSharesAmount),
			Amounts:          formatAll(e.AmountsOut),
			FeesWithdrawn:    fixed.Format(e.FeesWithdrawn),
			Swept:            swept,
		}
	case engine.FeesWithdrawn:
		return model.FeesWithdrawnEventData{Who: e.Who.Hex(), Amount: fixed.Format(e.Amount)}
	default:
		return nil
	}
}

func buildPoolMeta(p *pool.Pool) (*model.PoolMeta, error) {
	prices, err := p.SpotPrices()
	if err != nil {
		return nil, fmt.Errorf("spot prices of pool %d: %w", p.MarketID, err)
	}
	meta := &model.PoolMeta{
		LiquidityParameter: fixed.Format(p.LiquidityParameter),
		SwapFee:            fixed.Format(p.SwapFee),
		TotalShares:        fixed.Format(p.Tree.TotalShares()),
		Providers:          len(p.Tree.Accounts()),
		Reserves:           formatReserves(p),
		SpotPrices:         make(map[string]string, len(prices)),
	}
	for i, asset := range p.Assets() {
		meta.SpotPrices[asset.String()] = fixed.Format(prices[i])
	}
	return meta, nil
}

func buildPoolRecord(p *pool.Pool, lastSeq uint64) (model.PoolRecord, error) {
	encoded, err := p.Encode()
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("encode pool %d: %w", p.MarketID, err)
	}
	return model.PoolRecord{
		MarketID:           p.MarketID,
		AccountID:          p.AccountID.Hex(),
		Collateral:         p.Collateral.String(),
		LiquidityParameter: fixed.Format(p.LiquidityParameter),
		SwapFee:            fixed.Format(p.SwapFee),
		TotalShares:        fixed.Format(p.Tree.TotalShares()),
		Providers:          len(p.Tree.Accounts()),
		Reserves:           formatReserves(p),
		Encoded:            encoded,
		LastSeq:            lastSeq,
	}, nil
}

func formatReserves(p *pool.Pool) map[string]string {
	out := make(map[string]string, len(p.Reserves))
	for asset, amount := range p.Reserves {
		out[asset.String()] = fixed.Format(amount)
	}
	return out
}

func formatAll(values []*uint256.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fixed.Format(v)
	}
	return out
}
