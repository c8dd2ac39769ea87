// Package liquiditytree tracks liquidity provider shares and fees on a fixed-capacity
// binary tree stored as a flat array.
//
// Nodes use 1-based complete binary tree addressing: the root is 1 and the children of
// i are 2i and 2i+1. Every node may hold one provider. Each node caches the stake of
// its proper descendants, and fee deposits are parked as lazy fees on the root and only
// pushed down along the path that an operation touches, so join, exit and both fee
// operations cost O(depth).
package liquiditytree

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

// DefaultMaxDepth allows 1023 providers.
const DefaultMaxDepth uint32 = 9

// maxSupportedDepth keeps node indices addressable by uint32.
const maxSupportedDepth uint32 = 30

// JoinKind reports how a provider was placed by Join.
type JoinKind uint8

const (
	// InPlace means the provider already owned a node.
	InPlace JoinKind = iota
	// Reassigned means an abandoned node was reused.
	Reassigned
	// Leaf means a fresh node was appended.
	Leaf
)

func (k JoinKind) String() string {
	switch k {
	case InPlace:
		return "in_place"
	case Reassigned:
		return "reassigned"
	case Leaf:
		return "leaf"
	default:
		return "unknown"
	}
}

// Node is a single slot of the tree.
type Node struct {
	Account  common.Address
	Occupied bool
	// Stake is the occupant's own shares.
	Stake *uint256.Int
	// Fees are realized for the occupant and not yet withdrawn.
	Fees *uint256.Int
	// DescendantStake is the sum of the stake of all proper descendants.
	DescendantStake *uint256.Int
	// LazyFees were deposited into this subtree but not yet split among its nodes.
	LazyFees *uint256.Int
}

func newNode(account common.Address, stake *uint256.Int) Node {
	return Node{
		Account:         account,
		Occupied:        true,
		Stake:           fixed.Clone(stake),
		Fees:            fixed.Zero(),
		DescendantStake: fixed.Zero(),
		LazyFees:        fixed.Zero(),
	}
}

// totalStake is the stake of the subtree rooted at the node.
func (n *Node) totalStake() (*uint256.Int, error) {
	return fixed.Add(n.Stake, n.DescendantStake)
}

func (n Node) clone() Node {
	return Node{
		Account:         n.Account,
		Occupied:        n.Occupied,
		Stake:           fixed.Clone(n.Stake),
		Fees:            fixed.Clone(n.Fees),
		DescendantStake: fixed.Clone(n.DescendantStake),
		LazyFees:        fixed.Clone(n.LazyFees),
	}
}

// Tree is a liquidity tree. The zero value is not usable; call New.
type Tree struct {
	maxDepth       uint32
	nodes          []Node // nodes[i-1] is node i
	abandonedNodes []uint32
	accountToIndex map[common.Address]uint32
	// totalShares equals the stake of the root subtree. Join refuses stake that would
	// overflow it, so every subtree sum below it fits as well.
	totalShares *uint256.Int
}

// New creates a tree whose root is owned by account with the given stake.
func New(maxDepth uint32, account common.Address, stake *uint256.Int) (*Tree, error) {
	if maxDepth > maxSupportedDepth {
		return nil, fmt.Errorf("max depth %d above %d: %w", maxDepth, maxSupportedDepth, model.ErrNarrowingConversion)
	}
	t := &Tree{
		maxDepth:       maxDepth,
		accountToIndex: make(map[common.Address]uint32),
		totalShares:    fixed.Zero(),
	}
	if _, err := t.Join(account, stake); err != nil {
		return nil, err
	}
	return t, nil
}

// MaxDepth returns the depth bound of the tree.
func (t *Tree) MaxDepth() uint32 {
	return t.maxDepth
}

// MaxNodeCount returns 2^(depth+1) - 1.
func (t *Tree) MaxNodeCount() uint32 {
	return uint32(1)<<(t.maxDepth+1) - 1
}

// NodeCount returns the number of allocated nodes, occupied or abandoned.
func (t *Tree) NodeCount() uint32 {
	return uint32(len(t.nodes))
}

// Join adds stake for who, placing a new provider in the smallest abandoned node or a
// freshly appended one.
func (t *Tree) Join(who common.Address, stake *uint256.Int) (JoinKind, error) {
	if stake.IsZero() {
		return 0, model.ErrZeroAmount
	}
	total, err := fixed.Add(t.TotalShares(), stake)
	if err != nil {
		return 0, err
	}
	kind, err := t.join(who, stake)
	if err != nil {
		return 0, err
	}
	t.totalShares = total
	return kind, nil
}

func (t *Tree) join(who common.Address, stake *uint256.Int) (JoinKind, error) {
	if index, ok := t.accountToIndex[who]; ok {
		if err := t.propagateFeesToNode(index); err != nil {
			return 0, err
		}
		node := t.node(index)
		newStake, err := fixed.Add(node.Stake, stake)
		if err != nil {
			return 0, err
		}
		if err := t.updateDescendantStakeOfAncestors(index, stake, true); err != nil {
			return 0, err
		}
		node.Stake = newStake
		return InPlace, nil
	}

	if len(t.abandonedNodes) > 0 {
		index := t.abandonedNodes[0]
		if err := t.propagateFeesToNode(index); err != nil {
			return 0, err
		}
		if err := t.updateDescendantStakeOfAncestors(index, stake, true); err != nil {
			return 0, err
		}
		node := t.node(index)
		node.Account = who
		node.Occupied = true
		node.Stake = fixed.Clone(stake)
		// Rounding dust left on an abandoned node stays in the pool account.
		node.Fees = fixed.Zero()
		t.abandonedNodes = t.abandonedNodes[1:]
		t.accountToIndex[who] = index
		return Reassigned, nil
	}

	index := uint32(len(t.nodes)) + 1
	if index > t.MaxNodeCount() {
		return 0, model.ErrTreeIsFull
	}
	if index > 1 {
		// Lazy fees above the new node belong to the stake that was present before it.
		if err := t.propagateFeesToNode(parentIndex(index)); err != nil {
			return 0, err
		}
	}
	t.nodes = append(t.nodes, newNode(who, stake))
	if err := t.updateDescendantStakeOfAncestors(index, stake, true); err != nil {
		t.nodes = t.nodes[:len(t.nodes)-1]
		return 0, err
	}
	t.accountToIndex[who] = index
	return Leaf, nil
}

// Exit removes stake from who. A node whose stake reaches zero is abandoned and
// kept in place for reuse. Fully exiting requires withdrawn fees.
func (t *Tree) Exit(who common.Address, stake *uint256.Int) error {
	if stake.IsZero() {
		return model.ErrZeroAmount
	}
	index, ok := t.accountToIndex[who]
	if !ok {
		return model.ErrAccountNotFound
	}
	if err := t.propagateFeesToNode(index); err != nil {
		return err
	}
	node := t.node(index)
	if node.Stake.Lt(stake) {
		return model.ErrInsufficientStake
	}
	emptied := node.Stake.Eq(stake)
	if emptied && !node.Fees.IsZero() {
		return model.ErrOutstandingFees
	}
	if err := t.updateDescendantStakeOfAncestors(index, stake, false); err != nil {
		return err
	}
	node.Stake = new(uint256.Int).Sub(node.Stake, stake)
	t.totalShares = new(uint256.Int).Sub(t.totalShares, stake)
	if emptied {
		node.Account = common.Address{}
		node.Occupied = false
		delete(t.accountToIndex, who)
		t.insertAbandoned(index)
	}
	return nil
}

// DepositFees distributes amount over all providers in proportion to their stake.
func (t *Tree) DepositFees(amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	if len(t.nodes) == 0 || t.TotalShares().IsZero() {
		return fmt.Errorf("deposit into empty tree: %w", model.ErrUnexpected)
	}
	root := t.node(1)
	lazy, err := fixed.Add(root.LazyFees, amount)
	if err != nil {
		return err
	}
	root.LazyFees = lazy
	return nil
}

// WithdrawFees settles and returns the fees owed to who, resetting them to zero.
func (t *Tree) WithdrawFees(who common.Address) (*uint256.Int, error) {
	index, ok := t.accountToIndex[who]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	if err := t.propagateFeesToNode(index); err != nil {
		return nil, err
	}
	node := t.node(index)
	fees := node.Fees
	node.Fees = fixed.Zero()
	return fees, nil
}

// PendingFees returns what WithdrawFees would pay without mutating the tree.
func (t *Tree) PendingFees(who common.Address) (*uint256.Int, error) {
	return t.Clone().WithdrawFees(who)
}

// SharesOf returns the stake of who.
func (t *Tree) SharesOf(who common.Address) (*uint256.Int, error) {
	index, ok := t.accountToIndex[who]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return fixed.Clone(t.node(index).Stake), nil
}

// Contains reports whether who holds a node.
func (t *Tree) Contains(who common.Address) bool {
	_, ok := t.accountToIndex[who]
	return ok
}

// IndexOf returns the node index of who.
func (t *Tree) IndexOf(who common.Address) (uint32, bool) {
	index, ok := t.accountToIndex[who]
	return index, ok
}

// TotalShares returns the stake held by all providers.
func (t *Tree) TotalShares() *uint256.Int {
	return fixed.Clone(t.totalShares)
}

// Accounts lists providers in node index order.
func (t *Tree) Accounts() []common.Address {
	out := make([]common.Address, 0, len(t.accountToIndex))
	for i := range t.nodes {
		if t.nodes[i].Occupied {
			out = append(out, t.nodes[i].Account)
		}
	}
	return out
}

// AbandonedNodes returns the indices available for reuse, smallest first.
func (t *Tree) AbandonedNodes() []uint32 {
	return append([]uint32(nil), t.abandonedNodes...)
}

// Node returns a copy of the node at index.
func (t *Tree) Node(index uint32) (Node, bool) {
	if index == 0 || index > uint32(len(t.nodes)) {
		return Node{}, false
	}
	return t.node(index).clone(), true
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		maxDepth:       t.maxDepth,
		nodes:          make([]Node, len(t.nodes)),
		abandonedNodes: append([]uint32(nil), t.abandonedNodes...),
		accountToIndex: make(map[common.Address]uint32, len(t.accountToIndex)),
		totalShares:    fixed.Clone(t.totalShares),
	}
	for i := range t.nodes {
		c.nodes[i] = t.nodes[i].clone()
	}
	for account, index := range t.accountToIndex {
		c.accountToIndex[account] = index
	}
	return c
}

func (t *Tree) node(index uint32) *Node {
	return &t.nodes[index-1]
}

// propagateFees splits the lazy fees of a node among its occupant and its children,
// in proportion to stake. Every share is floor-rounded so the parts never exceed the
// whole; the remainder is left unassigned in the pool account.
func (t *Tree) propagateFees(index uint32) error {
	node := t.node(index)
	if node.LazyFees.IsZero() {
		return nil
	}
	total, err := node.totalStake()
	if err != nil {
		return err
	}
	if total.IsZero() {
		node.LazyFees = fixed.Zero()
		return nil
	}
	for _, childIndex := range []uint32{2 * index, 2*index + 1} {
		if childIndex > uint32(len(t.nodes)) {
			break
		}
		child := t.node(childIndex)
		childTotal, err := child.totalStake()
		if err != nil {
			return err
		}
		share, err := fixed.MulDivFloor(node.LazyFees, childTotal, total)
		if err != nil {
			return err
		}
		if child.LazyFees, err = fixed.Add(child.LazyFees, share); err != nil {
			return err
		}
	}
	own, err := fixed.MulDivFloor(node.LazyFees, node.Stake, total)
	if err != nil {
		return err
	}
	if node.Fees, err = fixed.Add(node.Fees, own); err != nil {
		return err
	}
	node.LazyFees = fixed.Zero()
	return nil
}

// propagateFeesToNode pushes lazy fees down the path from the root to index, inclusive.
func (t *Tree) propagateFeesToNode(index uint32) error {
	path := make([]uint32, 0, t.maxDepth+1)
	for i := index; i >= 1; i = parentIndex(i) {
		path = append(path, i)
	}
	for i := len(path) - 1; i >= 0; i-- {
		if err := t.propagateFees(path[i]); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) updateDescendantStakeOfAncestors(index uint32, delta *uint256.Int, increase bool) error {
	updated := make([]*uint256.Int, 0, t.maxDepth)
	for i := parentIndex(index); i >= 1; i = parentIndex(i) {
		var (
			v   *uint256.Int
			err error
		)
		if increase {
			v, err = fixed.Add(t.node(i).DescendantStake, delta)
		} else {
			v, err = fixed.Sub(t.node(i).DescendantStake, delta)
		}
		if err != nil {
			return err
		}
		updated = append(updated, v)
	}
	// Apply only after every ancestor succeeded.
	j := 0
	for i := parentIndex(index); i >= 1; i = parentIndex(i) {
		t.node(i).DescendantStake = updated[j]
		j++
	}
	return nil
}

func (t *Tree) insertAbandoned(index uint32) {
	pos := sort.Search(len(t.abandonedNodes), func(i int) bool { return t.abandonedNodes[i] >= index })
	t.abandonedNodes = append(t.abandonedNodes, 0)
	copy(t.abandonedNodes[pos+1:], t.abandonedNodes[pos:])
	t.abandonedNodes[pos] = index
}

func parentIndex(index uint32) uint32 {
	return index / 2
}
