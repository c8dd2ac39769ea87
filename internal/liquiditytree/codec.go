package liquiditytree

import (
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

type nodeRLP struct {
	Account         common.Address
	Occupied        bool
	Stake           *uint256.Int
	Fees            *uint256.Int
	DescendantStake *uint256.Int
	LazyFees        *uint256.Int
}

type treeRLP struct {
	MaxDepth  uint32
	Nodes     []nodeRLP
	Abandoned []uint32
}

// EncodeRLP implements rlp.Encoder. The encoding is a function of the tree contents
// alone, so equal trees hash equally.
func (t *Tree) EncodeRLP(w io.Writer) error {
	enc := treeRLP{
		MaxDepth:  t.maxDepth,
		Nodes:     make([]nodeRLP, len(t.nodes)),
		Abandoned: t.abandonedNodes,
	}
	for i, n := range t.nodes {
		enc.Nodes[i] = nodeRLP{
			Account:         n.Account,
			Occupied:        n.Occupied,
			Stake:           fixed.Clone(n.Stake),
			Fees:            fixed.Clone(n.Fees),
			DescendantStake: fixed.Clone(n.DescendantStake),
			LazyFees:        fixed.Clone(n.LazyFees),
		}
	}
	if enc.Abandoned == nil {
		enc.Abandoned = []uint32{}
	}
	return rlp.Encode(w, &enc)
}

// DecodeRLP implements rlp.Decoder. Besides the shape of the tree it checks the cached
// descendant stakes and that every free node is listed for reuse.
func (t *Tree) DecodeRLP(s *rlp.Stream) error {
	var dec treeRLP
	if err := s.Decode(&dec); err != nil {
		return fmt.Errorf("decode liquidity tree: %w", err)
	}
	if dec.MaxDepth > maxSupportedDepth {
		return fmt.Errorf("decode liquidity tree: max depth %d: %w", dec.MaxDepth, model.ErrUnexpected)
	}
	out := Tree{
		maxDepth:       dec.MaxDepth,
		nodes:          make([]Node, len(dec.Nodes)),
		accountToIndex: make(map[common.Address]uint32, len(dec.Nodes)),
	}
	if len(dec.Nodes) == 0 || uint32(len(dec.Nodes)) > out.MaxNodeCount() {
		return fmt.Errorf("decode liquidity tree: %d nodes for depth %d: %w", len(dec.Nodes), dec.MaxDepth, model.ErrUnexpected)
	}
	var free int
	for i, n := range dec.Nodes {
		index := uint32(i) + 1
		out.nodes[i] = Node{
			Account:         n.Account,
			Occupied:        n.Occupied,
			Stake:           fixed.Clone(n.Stake),
			Fees:            fixed.Clone(n.Fees),
			DescendantStake: fixed.Clone(n.DescendantStake),
			LazyFees:        fixed.Clone(n.LazyFees),
		}
		if n.Occupied == out.nodes[i].Stake.IsZero() {
			return fmt.Errorf("decode liquidity tree: node %d stake does not match occupancy: %w", index, model.ErrUnexpected)
		}
		if !n.Occupied {
			free++
			continue
		}
		if _, dup := out.accountToIndex[n.Account]; dup {
			return fmt.Errorf("decode liquidity tree: account %s appears twice: %w", n.Account.Hex(), model.ErrUnexpected)
		}
		out.accountToIndex[n.Account] = index
	}

	var prev uint32
	for _, index := range dec.Abandoned {
		if index <= prev || index > uint32(len(out.nodes)) || out.nodes[index-1].Occupied {
			return fmt.Errorf("decode liquidity tree: bad abandoned node %d: %w", index, model.ErrUnexpected)
		}
		prev = index
	}
	if len(dec.Abandoned) != free {
		return fmt.Errorf("decode liquidity tree: %d free nodes but %d listed as abandoned: %w", free, len(dec.Abandoned), model.ErrUnexpected)
	}
	if len(dec.Abandoned) > 0 {
		out.abandonedNodes = append([]uint32(nil), dec.Abandoned...)
	}

	total, err := out.checkDescendantStakes()
	if err != nil {
		return fmt.Errorf("decode liquidity tree: %w", err)
	}
	out.totalShares = total
	*t = out
	return nil
}

// checkDescendantStakes verifies every cached DescendantStake bottom-up and returns
// the stake of the whole tree.
func (t *Tree) checkDescendantStakes() (*uint256.Int, error) {
	count := uint32(len(t.nodes))
	subtree := make([]*uint256.Int, count+1)
	for index := count; index >= 1; index-- {
		sum := fixed.Zero()
		for _, child := range []uint32{2 * index, 2*index + 1} {
			if child > count {
				continue
			}
			var err error
			if sum, err = fixed.Add(sum, subtree[child]); err != nil {
				return nil, fmt.Errorf("node %d descendant stake: %w", index, model.ErrUnexpected)
			}
		}
		node := t.node(index)
		if !node.DescendantStake.Eq(sum) {
			return nil, fmt.Errorf("node %d descendant stake %s, children hold %s: %w", index, node.DescendantStake, sum, model.ErrUnexpected)
		}
		total, err := fixed.Add(node.Stake, sum)
		if err != nil {
			return nil, fmt.Errorf("node %d subtree stake: %w", index, model.ErrUnexpected)
		}
		subtree[index] = total
	}
	return subtree[1], nil
}
