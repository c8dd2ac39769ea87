package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"neoswaps/internal/model"
)

// Command is a typed request handled by Engine.Apply.
type Command interface {
	Op() string
}

// CreateMarket registers an active market with Outcomes outcome assets.
type CreateMarket struct {
	MarketID   uint64
	Creator    common.Address
	Collateral model.Asset
	Outcomes   uint16
}

// ResolveMarket closes a market to trading and records the winning outcome.
type ResolveMarket struct {
	MarketID uint64
	Outcome  uint16
}

// Fund mints balance out of thin air. It stands in for deposits from outside the engine.
type Fund struct {
	Who    common.Address
	Asset  model.Asset
	Amount *uint256.Int
}

// BuyCompleteSet turns Amount collateral into Amount of every outcome.
type BuyCompleteSet struct {
	Who      common.Address
	MarketID uint64
	Amount   *uint256.Int
}

// SellCompleteSet burns Amount of every outcome for Amount collateral.
type SellCompleteSet struct {
	Who      common.Address
	MarketID uint64
	Amount   *uint256.Int
}

// DeployPool creates the pool of a market. SpotPrices are given in outcome index order.
type DeployPool struct {
	Who        common.Address
	MarketID   uint64
	Amount     *uint256.Int
	SpotPrices []*uint256.Int
	SwapFee    *uint256.Int
}

// Buy spends AmountIn collateral on AssetOut.
type Buy struct {
	Who          common.Address
	MarketID     uint64
	AssetCount   uint16
	AssetOut     model.Asset
	AmountIn     *uint256.Int
	MinAmountOut *uint256.Int
}

// Sell sells AmountIn of AssetIn for collateral.
type Sell struct {
	Who          common.Address
	MarketID     uint64
	AssetCount   uint16
	AssetIn      model.Asset
	AmountIn     *uint256.Int
	MinAmountOut *uint256.Int
}

// Join buys PoolSharesAmount pool shares. MaxAmountsIn is in outcome index order.
type Join struct {
	Who              common.Address
	MarketID         uint64
	PoolSharesAmount *uint256.Int
	MaxAmountsIn     []*uint256.Int
}

// Exit burns PoolSharesAmount pool shares. MinAmountsOut is in outcome index order.
type Exit struct {
	Who              common.Address
	MarketID         uint64
	PoolSharesAmount *uint256.Int
	MinAmountsOut    []*uint256.Int
}

type WithdrawFees struct {
	Who      common.Address
	MarketID uint64
}

func (CreateMarket) Op() string    { return model.OpCreateMarket }
func (ResolveMarket) Op() string   { return model.OpResolveMarket }
func (Fund) Op() string            { return model.OpFund }
func (BuyCompleteSet) Op() string  { return model.OpBuyCompleteSet }
func (SellCompleteSet) Op() string { return model.OpSellCompleteSet }
func (DeployPool) Op() string      { return model.OpDeployPool }
func (Buy) Op() string             { return model.OpBuy }
func (Sell) Op() string            { return model.OpSell }
func (Join) Op() string            { return model.OpJoin }
func (Exit) Op() string            { return model.OpExit }
func (WithdrawFees) Op() string    { return model.OpWithdrawFees }
