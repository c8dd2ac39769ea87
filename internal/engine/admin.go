package engine

import (
	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

func (e *Engine) createMarket(cmd CreateMarket) (Event, error) {
	m, err := e.markets.Create(cmd.MarketID, cmd.Creator, cmd.Collateral, cmd.Outcomes)
	if err != nil {
		return nil, err
	}
	return MarketCreated{MarketID: m.ID, Creator: m.Creator, Collateral: m.Collateral, Outcomes: m.Outcomes}, nil
}

func (e *Engine) resolveMarket(cmd ResolveMarket) (Event, error) {
	if _, err := e.markets.Resolve(cmd.MarketID, cmd.Outcome); err != nil {
		return nil, err
	}
	return MarketResolved{MarketID: cmd.MarketID, Outcome: cmd.Outcome}, nil
}

func (e *Engine) fund(cmd Fund) (Event, error) {
	if cmd.Amount == nil || cmd.Amount.IsZero() {
		return nil, model.ErrZeroAmount
	}
	if err := e.ledger.Mint(cmd.Who, cmd.Asset, cmd.Amount); err != nil {
		return nil, err
	}
	return Funded{Who: cmd.Who, Asset: cmd.Asset, Amount: fixed.Clone(cmd.Amount)}, nil
}

func (e *Engine) buyCompleteSet(cmd BuyCompleteSet) (Event, error) {
	if err := e.completeSets.BuyCompleteSet(cmd.Who, cmd.MarketID, cmd.Amount); err != nil {
		return nil, err
	}
	return CompleteSetBought{Who: cmd.Who, MarketID: cmd.MarketID, Amount: fixed.Clone(cmd.Amount)}, nil
}

func (e *Engine) sellCompleteSet(cmd SellCompleteSet) (Event, error) {
	if err := e.completeSets.SellCompleteSet(cmd.Who, cmd.MarketID, cmd.Amount); err != nil {
		return nil, err
	}
	return CompleteSetSold{Who: cmd.Who, MarketID: cmd.MarketID, Amount: fixed.Clone(cmd.Amount)}, nil
}
