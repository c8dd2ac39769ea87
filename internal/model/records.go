package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// BalanceRecord is one ledger balance.
type BalanceRecord struct {
	Account common.Address `json:"account"`
	Asset   Asset          `json:"asset"`
	Amount  *uint256.Int   `json:"amount"`
}

// MarketRecord is the persisted form of a market.
type MarketRecord struct {
	ID              uint64         `json:"id"`
	Creator         common.Address `json:"creator"`
	Collateral      Asset          `json:"collateral"`
	Outcomes        uint16         `json:"outcomes"`
	Status          string         `json:"status"`
	Resolved        bool           `json:"resolved"`
	ResolvedOutcome uint16         `json:"resolved_outcome"`
}

// PoolRecord is a queryable summary of a pool, stored next to its encoding.
type PoolRecord struct {
	MarketID           uint64            `json:"market_id"`
	AccountID          string            `json:"account_id"`
	Collateral         string            `json:"collateral"`
	LiquidityParameter string            `json:"liquidity_parameter"`
	SwapFee            string            `json:"swap_fee"`
	TotalShares        string            `json:"total_shares"`
	Providers          int               `json:"providers"`
	Reserves           map[string]string `json:"reserves"`
	Encoded            hexutil.Bytes     `json:"encoded"`
	LastSeq            uint64            `json:"last_seq"`
}

// StateSnapshot is the complete engine state. Pools hold their canonical RLP encoding.
type StateSnapshot struct {
	LastSeq   uint64          `json:"last_seq"`
	StateHash common.Hash     `json:"state_hash"`
	Markets   []MarketRecord  `json:"markets"`
	Balances  []BalanceRecord `json:"balances"`
	Pools     []hexutil.Bytes `json:"pools"`
	UpdatedAt string          `json:"updated_at"`
}
