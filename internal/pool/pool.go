// Package pool holds the state of a single neo-swaps pool: its reserves, pricing
// parameters and liquidity tree.
package pool

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"neoswaps/internal/amm"
	"neoswaps/internal/fixed"
	"neoswaps/internal/liquiditytree"
	"neoswaps/internal/model"
)

const accountDomain = "neoswaps/pool"

// AccountIDFor derives the holding account of the pool of a market.
func AccountIDFor(marketID uint64) common.Address {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], marketID)
	return common.BytesToAddress(crypto.Keccak256([]byte(accountDomain), id[:]))
}

// Pool is the state of one market's pool.
type Pool struct {
	MarketID           uint64
	AccountID          common.Address
	Collateral         model.Asset
	Reserves           map[model.Asset]*uint256.Int
	LiquidityParameter *uint256.Int
	SwapFee            *uint256.Int
	Tree               *liquiditytree.Tree
}

// New builds a pool for marketID. The reserves map is copied.
func New(marketID uint64, collateral model.Asset, reserves map[model.Asset]*uint256.Int, liquidity, swapFee *uint256.Int, tree *liquiditytree.Tree) *Pool {
	copied := make(map[model.Asset]*uint256.Int, len(reserves))
	for asset, amount := range reserves {
		copied[asset] = fixed.Clone(amount)
	}
	return &Pool{
		MarketID:           marketID,
		AccountID:          AccountIDFor(marketID),
		Collateral:         collateral,
		Reserves:           copied,
		LiquidityParameter: fixed.Clone(liquidity),
		SwapFee:            fixed.Clone(swapFee),
		Tree:               tree,
	}
}

// Assets returns the traded assets in canonical order.
func (p *Pool) Assets() []model.Asset {
	assets := make([]model.Asset, 0, len(p.Reserves))
	for asset := range p.Reserves {
		assets = append(assets, asset)
	}
	model.SortAssets(assets)
	return assets
}

// Contains reports whether asset is traded by the pool.
func (p *Pool) Contains(asset model.Asset) bool {
	_, ok := p.Reserves[asset]
	return ok
}

// Reserve returns the reserve of asset.
func (p *Pool) Reserve(asset model.Asset) (*uint256.Int, error) {
	reserve, ok := p.Reserves[asset]
	if !ok {
		return nil, fmt.Errorf("reserve of %s: %w", asset, model.ErrAssetNotFound)
	}
	return reserve, nil
}

// IncreaseReserve adds amount to the reserve of asset.
func (p *Pool) IncreaseReserve(asset model.Asset, amount *uint256.Int) error {
	reserve, err := p.Reserve(asset)
	if err != nil {
		return err
	}
	updated, err := fixed.Add(reserve, amount)
	if err != nil {
		return err
	}
	p.Reserves[asset] = updated
	return nil
}

// DecreaseReserve subtracts amount from the reserve of asset.
func (p *Pool) DecreaseReserve(asset model.Asset, amount *uint256.Int) error {
	reserve, err := p.Reserve(asset)
	if err != nil {
		return err
	}
	updated, err := fixed.Sub(reserve, amount)
	if err != nil {
		return fmt.Errorf("reserve of %s: %w", asset, err)
	}
	p.Reserves[asset] = updated
	return nil
}

// CalculateSwapAmountOutForBuy returns the amount of assetOut received for amountIn
// collateral net of fees.
func (p *Pool) CalculateSwapAmountOutForBuy(assetOut model.Asset, amountIn *uint256.Int) (*uint256.Int, error) {
	reserve, err := p.Reserve(assetOut)
	if err != nil {
		return nil, err
	}
	return amm.CalculateSwapAmountOutForBuy(reserve, amountIn, p.LiquidityParameter)
}

// CalculateSwapAmountOutForSell returns the collateral, before fees, received for
// selling amountIn of assetIn.
func (p *Pool) CalculateSwapAmountOutForSell(assetIn model.Asset, amountIn *uint256.Int) (*uint256.Int, error) {
	reserve, err := p.Reserve(assetIn)
	if err != nil {
		return nil, err
	}
	return amm.CalculateSwapAmountOutForSell(reserve, amountIn, p.LiquidityParameter)
}

// ApplyBuy records a buy: amountIn complete sets enter the pool and amountOut of
// assetOut leaves it.
func (p *Pool) ApplyBuy(assetOut model.Asset, amountIn, amountOut *uint256.Int) error {
	for _, asset := range p.Assets() {
		if err := p.IncreaseReserve(asset, amountIn); err != nil {
			return err
		}
	}
	return p.DecreaseReserve(assetOut, amountOut)
}

// ApplySell records a sell: amountIn of assetIn enters the pool and amountOut
// complete sets leave it.
func (p *Pool) ApplySell(assetIn model.Asset, amountIn, amountOut *uint256.Int) error {
	if err := p.IncreaseReserve(assetIn, amountIn); err != nil {
		return err
	}
	for _, asset := range p.Assets() {
		if err := p.DecreaseReserve(asset, amountOut); err != nil {
			return err
		}
	}
	return nil
}

// SpotPrice returns the current price of asset in collateral.
func (p *Pool) SpotPrice(asset model.Asset) (*uint256.Int, error) {
	reserve, err := p.Reserve(asset)
	if err != nil {
		return nil, err
	}
	return amm.CalculateSpotPrice(reserve, p.LiquidityParameter)
}

// SpotPrices returns the spot prices of all assets in canonical order.
func (p *Pool) SpotPrices() ([]*uint256.Int, error) {
	assets := p.Assets()
	prices := make([]*uint256.Int, 0, len(assets))
	for _, asset := range assets {
		price, err := p.SpotPrice(asset)
		if err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	return prices, nil
}

// Clone returns a deep copy of the pool, including its tree.
func (p *Pool) Clone() *Pool {
	c := New(p.MarketID, p.Collateral, p.Reserves, p.LiquidityParameter, p.SwapFee, nil)
	c.AccountID = p.AccountID
	if p.Tree != nil {
		c.Tree = p.Tree.Clone()
	}
	return c
}
