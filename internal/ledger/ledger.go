// Package ledger is an in-memory multi-asset balance book.
package ledger

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

// Ledger holds balances per account and asset. Zero balances are not stored.
type Ledger struct {
	balances map[common.Address]map[model.Asset]*uint256.Int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[common.Address]map[model.Asset]*uint256.Int)}
}

// Balance returns the balance of who in asset.
func (l *Ledger) Balance(who common.Address, asset model.Asset) *uint256.Int {
	return fixed.Clone(l.balances[who][asset])
}

// Assets lists the assets with a non-zero balance for who, in canonical order.
func (l *Ledger) Assets(who common.Address) []model.Asset {
	held := l.balances[who]
	assets := make([]model.Asset, 0, len(held))
	for asset := range held {
		assets = append(assets, asset)
	}
	model.SortAssets(assets)
	return assets
}

// Mint credits amount of asset to who.
func (l *Ledger) Mint(who common.Address, asset model.Asset, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	updated, err := fixed.Add(l.Balance(who, asset), amount)
	if err != nil {
		return fmt.Errorf("mint %s: %w", asset, err)
	}
	l.set(who, asset, updated)
	return nil
}

// Burn debits amount of asset from who.
func (l *Ledger) Burn(who common.Address, asset model.Asset, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	balance := l.Balance(who, asset)
	if balance.Lt(amount) {
		return fmt.Errorf("burn %s %s from %s: %w", fixed.Format(amount), asset, who.Hex(), model.ErrInsufficientBalance)
	}
	l.set(who, asset, balance.Sub(balance, amount))
	return nil
}

// Transfer moves amount of asset from one account to another.
func (l *Ledger) Transfer(asset model.Asset, from, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() || from == to {
		return nil
	}
	if err := l.Burn(from, asset, amount); err != nil {
		return err
	}
	return l.Mint(to, asset, amount)
}

// Sweep moves every balance of from to to and returns the moved amounts.
func (l *Ledger) Sweep(from, to common.Address) (map[model.Asset]*uint256.Int, error) {
	moved := make(map[model.Asset]*uint256.Int)
	for _, asset := range l.Assets(from) {
		amount := l.Balance(from, asset)
		if err := l.Transfer(asset, from, to, amount); err != nil {
			return nil, err
		}
		moved[asset] = amount
	}
	return moved, nil
}

// TotalIssuance returns the sum of all balances of asset.
func (l *Ledger) TotalIssuance(asset model.Asset) *uint256.Int {
	total := fixed.Zero()
	for _, held := range l.balances {
		if v, ok := held[asset]; ok {
			total.Add(total, v)
		}
	}
	return total
}

func (l *Ledger) set(who common.Address, asset model.Asset, amount *uint256.Int) {
	held := l.balances[who]
	if amount.IsZero() {
		if held != nil {
			delete(held, asset)
			if len(held) == 0 {
				delete(l.balances, who)
			}
		}
		return
	}
	if held == nil {
		held = make(map[model.Asset]*uint256.Int)
		l.balances[who] = held
	}
	held[asset] = amount
}

// Snapshot returns a deep copy that Restore can reinstate.
func (l *Ledger) Snapshot() *Ledger {
	c := New()
	for who, held := range l.balances {
		copied := make(map[model.Asset]*uint256.Int, len(held))
		for asset, v := range held {
			copied[asset] = fixed.Clone(v)
		}
		c.balances[who] = copied
	}
	return c
}

// Restore replaces the contents of l with those of a snapshot.
func (l *Ledger) Restore(snapshot *Ledger) {
	l.balances = snapshot.Snapshot().balances
}

// Export lists every balance ordered by account then asset.
func (l *Ledger) Export() []model.BalanceRecord {
	accounts := make([]common.Address, 0, len(l.balances))
	for who := range l.balances {
		accounts = append(accounts, who)
	}
	sort.Slice(accounts, func(i, j int) bool { return bytes.Compare(accounts[i][:], accounts[j][:]) < 0 })

	out := make([]model.BalanceRecord, 0, len(accounts))
	for _, who := range accounts {
		for _, asset := range l.Assets(who) {
			out = append(out, model.BalanceRecord{
				Account: who,
				Asset:   asset,
				Amount:  fixed.Clone(l.balances[who][asset]),
			})
		}
	}
	return out
}

// Import replaces the ledger contents with the given balances.
func (l *Ledger) Import(records []model.BalanceRecord) error {
	fresh := New()
	for _, r := range records {
		if err := fresh.Mint(r.Account, r.Asset, r.Amount); err != nil {
			return err
		}
	}
	l.balances = fresh.balances
	return nil
}
