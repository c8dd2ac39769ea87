package model

import "time"

// MarketWindowMetrics stores aggregated metrics for a market's pool over a window.
type MarketWindowMetrics struct {
	MarketID           uint64
	WindowSizeSecs     int64
	WindowStart        time.Time
	WindowEnd          time.Time
	BuyCount           uint64
	SellCount          uint64
	JoinCount          uint64
	ExitCount          uint64
	Volume             string
	SwapFees           string
	ExternalFees       string
	FeesWithdrawn      string
	LiquidityParameter *string
	TotalShares        *string
	FeeRate            *string
	APR                *string
}
