package model

import "encoding/json"

// Event names written to the journal.
const (
	EventMarketCreated     = "MarketCreated"
	EventMarketResolved    = "MarketResolved"
	EventFunded            = "Funded"
	EventCompleteSetBought = "CompleteSetBought"
	EventCompleteSetSold   = "CompleteSetSold"
	EventPoolDeployed      = "PoolDeployed"
	EventPoolDestroyed     = "PoolDestroyed"
	EventBuyExecuted       = "BuyExecuted"
	EventSellExecuted      = "SellExecuted"
	EventJoinExecuted      = "JoinExecuted"
	EventExitExecuted      = "ExitExecuted"
	EventFeesWithdrawn     = "FeesWithdrawn"
)

// MarketEventData is the payload of market lifecycle events.
type MarketEventData struct {
	Creator    string `json:"creator,omitempty"`
	Collateral string `json:"collateral,omitempty"`
	Outcomes   uint16 `json:"outcomes,omitempty"`
	Resolved   *int   `json:"resolved_outcome,omitempty"`
}

// TransferEventData is the payload of funding and complete set events.
type TransferEventData struct {
	Who    string `json:"who"`
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// PoolDeployedEventData is the payload of PoolDeployed.
type PoolDeployedEventData struct {
	Who                string   `json:"who"`
	AccountID          string   `json:"account_id"`
	Collateral         string   `json:"collateral"`
	LiquidityParameter string   `json:"liquidity_parameter"`
	PoolSharesAmount   string   `json:"pool_shares_amount"`
	AmountsIn          []string `json:"amounts_in"`
	SwapFee            string   `json:"swap_fee"`
	SpotPrices         []string `json:"spot_prices"`
}

// TradeEventData is the payload of BuyExecuted and SellExecuted. Asset is the
// outcome bought or sold.
type TradeEventData struct {
	Who               string `json:"who"`
	Asset             string `json:"asset"`
	AmountIn          string `json:"amount_in"`
	AmountOut         string `json:"amount_out"`
	SwapFeeAmount     string `json:"swap_fee_amount"`
	ExternalFeeAmount string `json:"external_fee_amount"`
}

// LiquidityEventData is the payload of JoinExecuted, ExitExecuted and PoolDestroyed.
type LiquidityEventData struct {
	Who                   string            `json:"who"`
	PoolSharesAmount      string            `json:"pool_shares_amount"`
	Amounts               []string          `json:"amounts"`
	NewLiquidityParameter string            `json:"new_liquidity_parameter,omitempty"`
	FeesWithdrawn         string            `json:"fees_withdrawn,omitempty"`
	Swept                 map[string]string `json:"swept,omitempty"`
}

// FeesWithdrawnEventData is the payload of FeesWithdrawn.
type FeesWithdrawnEventData struct {
	Who    string `json:"who"`
	Amount string `json:"amount"`
}

// PoolMeta captures the pool state right after an event, when a pool exists.
type PoolMeta struct {
	LiquidityParameter string            `json:"liquidity_parameter"`
	SwapFee            string            `json:"swap_fee"`
	TotalShares        string            `json:"total_shares"`
	Providers          int               `json:"providers"`
	Reserves           map[string]string `json:"reserves"`
	SpotPrices         map[string]string `json:"spot_prices"`
}

// JournalEntry is an applied event as written to the journal.
type JournalEntry struct {
	Seq       uint64      `json:"seq"`
	Op        string      `json:"op"`
	Timestamp uint64      `json:"timestamp"`
	EventName string      `json:"event_name"`
	MarketID  uint64      `json:"market_id"`
	Payload   interface{} `json:"payload"`
	PoolMeta  *PoolMeta   `json:"pool_meta,omitempty"`
}

// JournalRecord is the JSON representation of a JournalEntry used for aggregation.
type JournalRecord struct {
	Seq       uint64          `json:"seq"`
	Op        string          `json:"op"`
	Timestamp uint64          `json:"timestamp"`
	EventName string          `json:"event_name"`
	MarketID  uint64          `json:"market_id"`
	Payload   json.RawMessage `json:"payload"`
	PoolMeta  *PoolMeta       `json:"pool_meta,omitempty"`
}
