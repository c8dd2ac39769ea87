package engine

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"neoswaps/internal/ledger"
	"neoswaps/internal/market"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

type stateRLP struct {
	Markets  []model.MarketRecord
	Balances []model.BalanceRecord
	Pools    [][]byte
}

// MarketIDs lists the markets that currently have a pool, ascending.
func (e *Engine) MarketIDs() []uint64 {
	ids := make([]uint64, 0, len(e.pools))
	for id := range e.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Pools returns copies of every pool ordered by market id.
func (e *Engine) Pools() []*pool.Pool {
	ids := e.MarketIDs()
	out := make([]*pool.Pool, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.pools[id].Clone())
	}
	return out
}

func (e *Engine) encodedPools() ([][]byte, error) {
	ids := e.MarketIDs()
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		enc, err := e.pools[id].Encode()
		if err != nil {
			return nil, fmt.Errorf("encode pool %d: %w", id, err)
		}
		out = append(out, enc)
	}
	return out, nil
}

// StateHash is the keccak256 of the canonical encoding of the whole engine state.
// Two engines that applied the same commands report the same hash.
func (e *Engine) StateHash() (common.Hash, error) {
	pools, err := e.encodedPools()
	if err != nil {
		return common.Hash{}, err
	}
	enc, err := rlp.EncodeToBytes(stateRLP{
		Markets:  e.markets.Export(),
		Balances: e.ledger.Export(),
		Pools:    pools,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode state: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}

// Export captures the engine state after lastSeq commands. UpdatedAt is left for the caller.
func (e *Engine) Export(lastSeq uint64) (model.StateSnapshot, error) {
	pools, err := e.encodedPools()
	if err != nil {
		return model.StateSnapshot{}, err
	}
	hash, err := e.StateHash()
	if err != nil {
		return model.StateSnapshot{}, err
	}
	encoded := make([]hexutil.Bytes, len(pools))
	for i, p := range pools {
		encoded[i] = p
	}
	return model.StateSnapshot{
		LastSeq:   lastSeq,
		StateHash: hash,
		Markets:   e.markets.Export(),
		Balances:  e.ledger.Export(),
		Pools:     encoded,
	}, nil
}

// Import replaces the engine state with a snapshot and verifies its hash when one is set.
func (e *Engine) Import(snap model.StateSnapshot) error {
	markets := market.NewRegistry()
	if err := markets.Import(snap.Markets); err != nil {
		return fmt.Errorf("import markets: %w", err)
	}
	balances := ledger.New()
	if err := balances.Import(snap.Balances); err != nil {
		return fmt.Errorf("import balances: %w", err)
	}
	pools := make(map[uint64]*pool.Pool, len(snap.Pools))
	for i, enc := range snap.Pools {
		p, err := pool.Decode(enc)
		if err != nil {
			return fmt.Errorf("import pool %d: %w", i, err)
		}
		if _, err := markets.Market(p.MarketID); err != nil {
			return fmt.Errorf("import pool %d: %w", p.MarketID, err)
		}
		if _, ok := pools[p.MarketID]; ok {
			return fmt.Errorf("import pool %d: %w", p.MarketID, model.ErrDuplicatePool)
		}
		pools[p.MarketID] = p
	}

	prev := e.snapshot()
	e.markets.Restore(markets)
	e.ledger.Restore(balances)
	e.pools = pools

	if snap.StateHash != (common.Hash{}) {
		hash, err := e.StateHash()
		if err != nil {
			e.restore(prev)
			return err
		}
		if hash != snap.StateHash {
			e.restore(prev)
			return fmt.Errorf("state hash mismatch: have %s, want %s: %w", hash.Hex(), snap.StateHash.Hex(), model.ErrUnexpected)
		}
	}
	return nil
}
