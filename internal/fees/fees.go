// Package fees implements external fee policies charged on pool trades.
package fees

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/model"
)

// Percentage charges floor(rate * amount) and pays it to a treasury account.
type Percentage struct {
	Rate     *uint256.Int
	Treasury common.Address
	Ledger   *ledger.Ledger
}

// NewPercentage validates rate, which must be below one.
func NewPercentage(rate *uint256.Int, treasury common.Address, l *ledger.Ledger) (*Percentage, error) {
	if !rate.Lt(fixed.Base()) {
		return nil, fmt.Errorf("external fee rate %s must be below 1", fixed.Format(rate))
	}
	return &Percentage{Rate: fixed.Clone(rate), Treasury: treasury, Ledger: l}, nil
}

// Distribute transfers the fee on amount of asset from the paying account to the
// treasury and returns the fee.
func (p *Percentage) Distribute(marketID uint64, asset model.Asset, from common.Address, amount *uint256.Int) (*uint256.Int, error) {
	fee, err := fixed.MulFloor(p.Rate, amount)
	if err != nil {
		return nil, err
	}
	if fee.IsZero() {
		return fee, nil
	}
	if err := p.Ledger.Transfer(asset, from, p.Treasury, fee); err != nil {
		return nil, fmt.Errorf("external fees for market %d: %w", marketID, err)
	}
	return fee, nil
}

// None charges no external fees.
type None struct{}

// Distribute always returns zero.
func (None) Distribute(uint64, model.Asset, common.Address, *uint256.Int) (*uint256.Int, error) {
	return fixed.Zero(), nil
}
