package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"neoswaps/internal/model"
)

// Event describes the state change made by a successful command.
type Event interface {
	Name() string
	Market() uint64
}

type MarketCreated struct {
	MarketID   uint64
	Creator    common.Address
	Collateral model.Asset
	Outcomes   uint16
}

type MarketResolved struct {
	MarketID uint64
	Outcome  uint16
}

type Funded struct {
	Who    common.Address
	Asset  model.Asset
	Amount *uint256.Int
}

type CompleteSetBought struct {
	Who      common.Address
	MarketID uint64
	Amount   *uint256.Int
}

type CompleteSetSold struct {
	Who      common.Address
	MarketID uint64
	Amount   *uint256.Int
}

type PoolDeployed struct {
	Who                common.Address
	MarketID           uint64
	AccountID          common.Address
	Collateral         model.Asset
	LiquidityParameter *uint256.Int
	PoolSharesAmount   *uint256.Int
	AmountsIn          []*uint256.Int
	SwapFee            *uint256.Int
	SpotPrices         []*uint256.Int
}

// BuyExecuted reports a buy. AmountIn is gross of fees; AmountOut is in AssetOut.
type BuyExecuted struct {
	Who               common.Address
	MarketID          uint64
	AssetOut          model.Asset
	AmountIn          *uint256.Int
	AmountOut         *uint256.Int
	SwapFeeAmount     *uint256.Int
	ExternalFeeAmount *uint256.Int
}

// SellExecuted reports a sell. AmountOut is the collateral paid out net of fees.
type SellExecuted struct {
	Who               common.Address
	MarketID          uint64
	AssetIn           model.Asset
	AmountIn          *uint256.Int
	AmountOut         *uint256.Int
	SwapFeeAmount     *uint256.Int
	ExternalFeeAmount *uint256.Int
}

type JoinExecuted struct {
	Who                   common.Address
	MarketID              uint64
	PoolSharesAmount      *uint256.Int
	AmountsIn             []*uint256.Int
	NewLiquidityParameter *uint256.Int
}

type ExitExecuted struct {
	Who                   common.Address
	MarketID              uint64
	PoolSharesAmount      *uint256.Int
	AmountsOut            []*uint256.Int
	NewLiquidityParameter *uint256.Int
	FeesWithdrawn         *uint256.Int
}

// PoolDestroyed reports the exit of the last provider. Swept holds what was left
// in the pool account and moved to the sink.
type PoolDestroyed struct {
	Who              common.Address
	MarketID         uint64
	PoolSharesAmount *uint256.Int
	AmountsOut       []*uint256.Int
	FeesWithdrawn    *uint256.Int
	Swept            map[model.Asset]*uint256.Int
}

type FeesWithdrawn struct {
	Who      common.Address
	MarketID uint64
	Amount   *uint256.Int
}

func (MarketCreated) Name() string     { return model.EventMarketCreated }
func (MarketResolved) Name() string    { return model.EventMarketResolved }
func (Funded) Name() string            { return model.EventFunded }
func (CompleteSetBought) Name() string { return model.EventCompleteSetBought }
func (CompleteSetSold) Name() string   { return model.EventCompleteSetSold }
func (PoolDeployed) Name() string      { return model.EventPoolDeployed }
func (BuyExecuted) Name() string       { return model.EventBuyExecuted }
func (SellExecuted) Name() string      { return model.EventSellExecuted }
func (JoinExecuted) Name() string      { return model.EventJoinExecuted }
func (ExitExecuted) Name() string      { return model.EventExitExecuted }
func (PoolDestroyed) Name() string     { return model.EventPoolDestroyed }
func (FeesWithdrawn) Name() string     { return model.EventFeesWithdrawn }

func (e MarketCreated) Market() uint64     { return e.MarketID }
func (e MarketResolved) Market() uint64    { return e.MarketID }
func (Funded) Market() uint64              { return 0 }
func (e CompleteSetBought) Market() uint64 { return e.MarketID }
func (e CompleteSetSold) Market() uint64   { return e.MarketID }
func (e PoolDeployed) Market() uint64      { return e.MarketID }
func (e BuyExecuted) Market() uint64       { return e.MarketID }
func (e SellExecuted) Market() uint64      { return e.MarketID }
func (e JoinExecuted) Market() uint64      { return e.MarketID }
func (e ExitExecuted) Market() uint64      { return e.MarketID }
func (e PoolDestroyed) Market() uint64     { return e.MarketID }
func (e FeesWithdrawn) Market() uint64     { return e.MarketID }
