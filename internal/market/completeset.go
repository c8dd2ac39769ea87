package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"neoswaps/internal/ledger"
	"neoswaps/internal/model"
)

// CompleteSets exchanges collateral for one unit of every outcome of a market and back.
type CompleteSets struct {
	markets *Registry
	ledger  *ledger.Ledger
}

// NewCompleteSets wires complete set operations to a registry and ledger.
func NewCompleteSets(markets *Registry, l *ledger.Ledger) *CompleteSets {
	return &CompleteSets{markets: markets, ledger: l}
}

// BuyCompleteSet moves amount collateral from who into the market escrow and mints
// amount of every outcome to who.
func (c *CompleteSets) BuyCompleteSet(who common.Address, marketID uint64, amount *uint256.Int) error {
	if amount.IsZero() {
		return model.ErrZeroAmount
	}
	m, err := c.markets.Market(marketID)
	if err != nil {
		return err
	}
	if m.Status != Active {
		return fmt.Errorf("buy complete set on market %d: %w", marketID, model.ErrMarketNotActive)
	}
	if err := c.ledger.Transfer(m.Collateral, who, m.AccountID(), amount); err != nil {
		return fmt.Errorf("buy complete set: %w", err)
	}
	for _, asset := range m.OutcomeAssets() {
		if err := c.ledger.Mint(who, asset, amount); err != nil {
			return err
		}
	}
	return nil
}

// SellCompleteSet burns amount of every outcome held by who and releases amount
// collateral from the market escrow.
func (c *CompleteSets) SellCompleteSet(who common.Address, marketID uint64, amount *uint256.Int) error {
	if amount.IsZero() {
		return model.ErrZeroAmount
	}
	m, err := c.markets.Market(marketID)
	if err != nil {
		return err
	}
	if m.Status != Active {
		return fmt.Errorf("sell complete set on market %d: %w", marketID, model.ErrMarketNotActive)
	}
	for _, asset := range m.OutcomeAssets() {
		if err := c.ledger.Burn(who, asset, amount); err != nil {
			return fmt.Errorf("sell complete set: %w", err)
		}
	}
	return c.ledger.Transfer(m.Collateral, m.AccountID(), who, amount)
}
