// Package market provides the minimal market lifecycle and complete set operations the
// pool engine depends on.
package market

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"neoswaps/internal/model"
)

// Status is the lifecycle state of a market.
type Status uint8

const (
	Active Status = iota
	Closed
	Resolved
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Closed:
		return "closed"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(input string) (Status, error) {
	switch input {
	case "active":
		return Active, nil
	case "closed":
		return Closed, nil
	case "resolved":
		return Resolved, nil
	default:
		return 0, fmt.Errorf("invalid market status: %s", input)
	}
}

// Market is a categorical prediction market.
type Market struct {
	ID              uint64
	Creator         common.Address
	Collateral      model.Asset
	Outcomes        uint16
	Status          Status
	ResolvedOutcome *uint16
}

// OutcomeAssets returns the outcome tokens of the market in index order.
func (m Market) OutcomeAssets() []model.Asset {
	assets := make([]model.Asset, 0, m.Outcomes)
	for i := uint16(0); i < m.Outcomes; i++ {
		assets = append(assets, model.Outcome(m.ID, i))
	}
	return assets
}

// AccountID is the escrow account holding the collateral backing complete sets.
func (m Market) AccountID() common.Address {
	return AccountIDFor(m.ID)
}

// AccountIDFor derives the escrow account of a market.
func AccountIDFor(marketID uint64) common.Address {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], marketID)
	return common.BytesToAddress(crypto.Keccak256([]byte("neoswaps/market"), id[:]))
}

func (m Market) clone() *Market {
	c := m
	if m.ResolvedOutcome != nil {
		outcome := *m.ResolvedOutcome
		c.ResolvedOutcome = &outcome
	}
	return &c
}

// Registry stores markets by id.
type Registry struct {
	markets map[uint64]*Market
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{markets: make(map[uint64]*Market)}
}

// Create registers a new active market.
func (r *Registry) Create(id uint64, creator common.Address, collateral model.Asset, outcomes uint16) (Market, error) {
	if _, ok := r.markets[id]; ok {
		return Market{}, fmt.Errorf("market %d: %w", id, model.ErrDuplicateMarket)
	}
	if collateral.IsOutcome() {
		return Market{}, fmt.Errorf("market %d collateral %s: %w", id, collateral, model.ErrAssetNotFound)
	}
	if outcomes < 2 {
		return Market{}, fmt.Errorf("market %d needs at least two outcomes: %w", id, model.ErrIncorrectVecLen)
	}
	m := &Market{ID: id, Creator: creator, Collateral: collateral, Outcomes: outcomes, Status: Active}
	r.markets[id] = m
	return *m.clone(), nil
}

// Market returns the market with the given id.
func (r *Registry) Market(id uint64) (Market, error) {
	m, ok := r.markets[id]
	if !ok {
		return Market{}, fmt.Errorf("market %d: %w", id, model.ErrMarketNotFound)
	}
	return *m.clone(), nil
}

// Close stops trading on an active market.
func (r *Registry) Close(id uint64) error {
	m, ok := r.markets[id]
	if !ok {
		return fmt.Errorf("market %d: %w", id, model.ErrMarketNotFound)
	}
	if m.Status != Active {
		return fmt.Errorf("close market %d: %w", id, model.ErrMarketNotActive)
	}
	m.Status = Closed
	return nil
}

// Resolve settles a market on one of its outcomes.
func (r *Registry) Resolve(id uint64, outcome uint16) (Market, error) {
	m, ok := r.markets[id]
	if !ok {
		return Market{}, fmt.Errorf("market %d: %w", id, model.ErrMarketNotFound)
	}
	if m.Status == Resolved {
		return Market{}, fmt.Errorf("resolve market %d: %w", id, model.ErrMarketNotActive)
	}
	if outcome >= m.Outcomes {
		return Market{}, fmt.Errorf("resolve market %d outcome %d: %w", id, outcome, model.ErrAssetNotFound)
	}
	m.Status = Resolved
	m.ResolvedOutcome = &outcome
	return *m.clone(), nil
}

// Snapshot returns a deep copy for Restore.
func (r *Registry) Snapshot() *Registry {
	c := NewRegistry()
	for id, m := range r.markets {
		c.markets[id] = m.clone()
	}
	return c
}

// Restore replaces the registry contents with a snapshot.
func (r *Registry) Restore(snapshot *Registry) {
	r.markets = snapshot.Snapshot().markets
}

// Export lists markets by id.
func (r *Registry) Export() []model.MarketRecord {
	ids := make([]uint64, 0, len(r.markets))
	for id := range r.markets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]model.MarketRecord, 0, len(ids))
	for _, id := range ids {
		m := r.markets[id]
		rec := model.MarketRecord{
			ID:         m.ID,
			Creator:    m.Creator,
			Collateral: m.Collateral,
			Outcomes:   m.Outcomes,
			Status:     m.Status.String(),
		}
		if m.ResolvedOutcome != nil {
			rec.Resolved = true
			rec.ResolvedOutcome = *m.ResolvedOutcome
		}
		out = append(out, rec)
	}
	return out
}

// Import replaces the registry contents with the given records.
func (r *Registry) Import(records []model.MarketRecord) error {
	markets := make(map[uint64]*Market, len(records))
	for _, rec := range records {
		status, err := ParseStatus(rec.Status)
		if err != nil {
			return fmt.Errorf("market %d: %w", rec.ID, err)
		}
		m := &Market{
			ID:         rec.ID,
			Creator:    rec.Creator,
			Collateral: rec.Collateral,
			Outcomes:   rec.Outcomes,
			Status:     status,
		}
		if rec.Resolved {
			outcome := rec.ResolvedOutcome
			m.ResolvedOutcome = &outcome
		}
		markets[rec.ID] = m
	}
	r.markets = markets
	return nil
}
