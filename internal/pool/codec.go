package pool

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/liquiditytree"
	"neoswaps/internal/model"
)

type reserveRLP struct {
	Asset  model.Asset
	Amount *uint256.Int
}

type poolRLP struct {
	MarketID           uint64
	AccountID          common.Address
	Collateral         model.Asset
	Reserves           []reserveRLP
	LiquidityParameter *uint256.Int
	SwapFee            *uint256.Int
	Tree               *liquiditytree.Tree
}

// EncodeRLP implements rlp.Encoder. Reserves are written in canonical asset order.
func (p *Pool) EncodeRLP(w io.Writer) error {
	if p.Tree == nil {
		return fmt.Errorf("encode pool %d: missing liquidity tree", p.MarketID)
	}
	enc := poolRLP{
		MarketID:           p.MarketID,
		AccountID:          p.AccountID,
		Collateral:         p.Collateral,
		LiquidityParameter: fixed.Clone(p.LiquidityParameter),
		SwapFee:            fixed.Clone(p.SwapFee),
		Tree:               p.Tree,
	}
	for _, asset := range p.Assets() {
		enc.Reserves = append(enc.Reserves, reserveRLP{Asset: asset, Amount: fixed.Clone(p.Reserves[asset])})
	}
	return rlp.Encode(w, &enc)
}

// DecodeRLP implements rlp.Decoder.
func (p *Pool) DecodeRLP(s *rlp.Stream) error {
	var dec poolRLP
	if err := s.Decode(&dec); err != nil {
		return fmt.Errorf("decode pool: %w", err)
	}
	if dec.Tree == nil {
		return fmt.Errorf("decode pool %d: missing liquidity tree", dec.MarketID)
	}
	reserves := make(map[model.Asset]*uint256.Int, len(dec.Reserves))
	for i, r := range dec.Reserves {
		if i > 0 && !dec.Reserves[i-1].Asset.Less(r.Asset) {
			return fmt.Errorf("decode pool %d: reserves out of order at %s", dec.MarketID, r.Asset)
		}
		reserves[r.Asset] = fixed.Clone(r.Amount)
	}
	*p = Pool{
		MarketID:           dec.MarketID,
		AccountID:          dec.AccountID,
		Collateral:         dec.Collateral,
		Reserves:           reserves,
		LiquidityParameter: fixed.Clone(dec.LiquidityParameter),
		SwapFee:            fixed.Clone(dec.SwapFee),
		Tree:               dec.Tree,
	}
	return nil
}

// Encode returns the canonical RLP encoding of the pool.
func (p *Pool) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

// Decode parses a pool from its RLP encoding.
func Decode(data []byte) (*Pool, error) {
	var p Pool
	if err := rlp.DecodeBytes(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
