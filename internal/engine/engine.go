// Package engine applies typed commands to neo-swaps pools.
//
// Every command runs as one transaction: Apply snapshots pools, balances and markets,
// and restores the snapshot if the command fails at any point. The engine is not safe
// for concurrent use.
package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"neoswaps/internal/fees"
	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/liquiditytree"
	"neoswaps/internal/market"
	"neoswaps/internal/model"
	"neoswaps/internal/pool"
)

var (
	minSpotPrice               = fixed.Fraction(1, 100)
	maxSpotPrice               = fixed.Fraction(99, 100)
	minSwapFee                 = fixed.Fraction(1, 1000)
	minLiquidity               = fixed.Units(1)
	exitFee                    = fixed.Fraction(1, 1000)
	minRelativeLPPositionValue = fixed.Fraction(1, 100)
)

// DefaultMaxSwapFee is used when Config.MaxSwapFee is unset.
func DefaultMaxSwapFee() *uint256.Int {
	return fixed.Fraction(1, 10)
}

// CompleteSetOperations buys and sells baskets of every outcome of a market.
type CompleteSetOperations interface {
	BuyCompleteSet(who common.Address, marketID uint64, amount *uint256.Int) error
	SellCompleteSet(who common.Address, marketID uint64, amount *uint256.Int) error
}

// ExternalFees charges protocol fees on trades. Distribute moves the fee out of from
// and returns it.
type ExternalFees interface {
	Distribute(marketID uint64, asset model.Asset, from common.Address, amount *uint256.Int) (*uint256.Int, error)
}

// Config holds engine parameters.
type Config struct {
	MaxSwapFee   *uint256.Int
	MaxTreeDepth uint32
	// ExitFeeSink receives whatever is left in a pool account when the pool is destroyed.
	ExitFeeSink common.Address
}

// Engine owns every pool and applies commands to them.
type Engine struct {
	cfg          Config
	ledger       *ledger.Ledger
	markets      *market.Registry
	completeSets CompleteSetOperations
	externalFees ExternalFees
	pools        map[uint64]*pool.Pool
	logger       *zap.Logger
}

// New builds an Engine. Nil collaborators fall back to the in-memory complete set
// operations and to no external fees.
func New(cfg Config, l *ledger.Ledger, markets *market.Registry, completeSets CompleteSetOperations, externalFees ExternalFees, logger *zap.Logger) *Engine {
	if cfg.MaxSwapFee == nil {
		cfg.MaxSwapFee = DefaultMaxSwapFee()
	}
	if cfg.MaxTreeDepth == 0 {
		cfg.MaxTreeDepth = liquiditytree.DefaultMaxDepth
	}
	if completeSets == nil {
		completeSets = market.NewCompleteSets(markets, l)
	}
	if externalFees == nil {
		externalFees = fees.None{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:          cfg,
		ledger:       l,
		markets:      markets,
		completeSets: completeSets,
		externalFees: externalFees,
		pools:        make(map[uint64]*pool.Pool),
		logger:       logger,
	}
}

// Ledger exposes the balances the engine trades against.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Markets exposes the market registry.
func (e *Engine) Markets() *market.Registry {
	return e.markets
}

// Pool returns a copy of the pool of a market.
func (e *Engine) Pool(marketID uint64) (*pool.Pool, error) {
	p, err := e.pool(marketID)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

type snapshot struct {
	pools   map[uint64]*pool.Pool
	ledger  *ledger.Ledger
	markets *market.Registry
}

func (e *Engine) snapshot() snapshot {
	pools := make(map[uint64]*pool.Pool, len(e.pools))
	for id, p := range e.pools {
		pools[id] = p.Clone()
	}
	return snapshot{pools: pools, ledger: e.ledger.Snapshot(), markets: e.markets.Snapshot()}
}

func (e *Engine) restore(s snapshot) {
	e.pools = s.pools
	e.ledger.Restore(s.ledger)
	e.markets.Restore(s.markets)
}

// Apply executes cmd atomically. On error no state is changed.
func (e *Engine) Apply(cmd Command) (Event, error) {
	snap := e.snapshot()
	event, err := e.dispatch(cmd)
	if err != nil {
		e.restore(snap)
		e.logger.Warn("command rolled back",
			zap.String("op", cmd.Op()),
			zap.String("error_name", model.NameOf(err)),
			zap.String("class", model.ClassOf(err).String()),
			zap.Error(err),
		)
		return nil, err
	}
	e.logger.Debug("command applied", zap.String("op", cmd.Op()), zap.String("event", event.Name()), zap.Uint64("market_id", event.Market()))
	return event, nil
}

func (e *Engine) dispatch(cmd Command) (Event, error) {
	switch c := cmd.(type) {
	case CreateMarket:
		return e.createMarket(c)
	case ResolveMarket:
		return e.resolveMarket(c)
	case Fund:
		return e.fund(c)
	case BuyCompleteSet:
		return e.buyCompleteSet(c)
	case SellCompleteSet:
		return e.sellCompleteSet(c)
	case DeployPool:
		return e.deployPool(c)
	case Buy:
		return e.buy(c)
	case Sell:
		return e.sell(c)
	case Join:
		return e.join(c)
	case Exit:
		return e.exit(c)
	case WithdrawFees:
		return e.withdrawFees(c)
	default:
		return nil, fmt.Errorf("unsupported command %T: %w", cmd, model.ErrUnexpected)
	}
}

func (e *Engine) pool(marketID uint64) (*pool.Pool, error) {
	p, ok := e.pools[marketID]
	if !ok {
		return nil, fmt.Errorf("market %d: %w", marketID, model.ErrPoolNotFound)
	}
	return p, nil
}

func (e *Engine) activeMarket(marketID uint64) (market.Market, error) {
	m, err := e.markets.Market(marketID)
	if err != nil {
		return market.Market{}, err
	}
	if m.Status != market.Active {
		return market.Market{}, fmt.Errorf("market %d is %s: %w", marketID, m.Status, model.ErrMarketNotActive)
	}
	return m, nil
}
