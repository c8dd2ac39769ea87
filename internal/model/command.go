package model

import (
	"encoding/json"
)

// Operations accepted in a command stream.
const (
	OpCreateMarket    = "create_market"
	OpResolveMarket   = "resolve_market"
	OpFund            = "fund"
	OpBuyCompleteSet  = "buy_complete_set"
	OpSellCompleteSet = "sell_complete_set"
	OpDeployPool      = "deploy_pool"
	OpBuy             = "buy"
	OpSell            = "sell"
	OpJoin            = "join"
	OpExit            = "exit"
	OpWithdrawFees    = "withdraw_fees"
)

// CommandRecord is one line of a command stream.
type CommandRecord struct {
	Seq       uint64          `json:"seq"`
	Op        string          `json:"op"`
	Timestamp uint64          `json:"timestamp"`
	Args      json.RawMessage `json:"args"`
}

// MarshalJSON ensures CommandRecord is encoded with stable field names.
func (c CommandRecord) MarshalJSON() ([]byte, error) {
	type Alias CommandRecord
	return json.Marshal(Alias(c))
}

// UnmarshalJSON decodes a CommandRecord from JSON.
func (c *CommandRecord) UnmarshalJSON(data []byte) error {
	type Alias CommandRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = CommandRecord(a)
	return nil
}

// Argument payloads. Amounts and prices are decimal strings such as "0.5".

type CreateMarketArgs struct {
	MarketID   uint64 `json:"market_id"`
	Creator    string `json:"creator"`
	Collateral string `json:"collateral"`
	Outcomes   uint16 `json:"outcomes"`
}

type ResolveMarketArgs struct {
	MarketID uint64 `json:"market_id"`
	Outcome  uint16 `json:"outcome"`
}

type FundArgs struct {
	Who    string `json:"who"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

type CompleteSetArgs struct {
	Who      string `json:"who"`
	MarketID uint64 `json:"market_id"`
	Amount   string `json:"amount"`
}

type DeployPoolArgs struct {
	Who        string   `json:"who"`
	MarketID   uint64   `json:"market_id"`
	Amount     string   `json:"amount"`
	SpotPrices []string `json:"spot_prices"`
	SwapFee    string   `json:"swap_fee"`
}

type TradeArgs struct {
	Who          string `json:"who"`
	MarketID     uint64 `json:"market_id"`
	AssetCount   uint16 `json:"asset_count"`
	Asset        string `json:"asset"`
	AmountIn     string `json:"amount_in"`
	MinAmountOut string `json:"min_amount_out"`
}

type LiquidityArgs struct {
	Who              string   `json:"who"`
	MarketID         uint64   `json:"market_id"`
	PoolSharesAmount string   `json:"pool_shares_amount"`
	Amounts          []string `json:"amounts"`
}

type WithdrawFeesArgs struct {
	Who      string `json:"who"`
	MarketID uint64 `json:"market_id"`
}

// CommandError records a command that was rejected and rolled back.
type CommandError struct {
	Seq       uint64 `json:"seq"`
	Op        string `json:"op"`
	Timestamp uint64 `json:"timestamp"`
	Error     string `json:"error"`
	Name      string `json:"name,omitempty"`
	Class     string `json:"class"`
}
