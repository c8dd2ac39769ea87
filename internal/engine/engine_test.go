package engine

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/fees"
	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/market"
	"neoswaps/internal/model"
)

const marketID uint64 = 7

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	treasury = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	sink     = common.HexToAddress("0x00000000000000000000000000000000000000ff")

	collateral = model.Collateral(1)
	yes        = model.Outcome(marketID, 0)
	no         = model.Outcome(marketID, 1)
)

type fixture struct {
	engine *Engine
	ledger *ledger.Ledger
}

func newFixture(t *testing.T, externalRate *uint256.Int) *fixture {
	t.Helper()
	l := ledger.New()
	markets := market.NewRegistry()
	var external ExternalFees
	if externalRate != nil {
		p, err := fees.NewPercentage(externalRate, treasury, l)
		require.NoError(t, err)
		external = p
	}
	e := New(Config{ExitFeeSink: sink}, l, markets, nil, external, nil)

	mustApply(t, e, CreateMarket{MarketID: marketID, Creator: alice, Collateral: collateral, Outcomes: 2})
	for _, who := range []common.Address{alice, bob, carol} {
		mustApply(t, e, Fund{Who: who, Asset: collateral, Amount: fixed.Units(1000)})
	}
	return &fixture{engine: e, ledger: l}
}

func mustApply(t *testing.T, e *Engine, cmd Command) Event {
	t.Helper()
	event, err := e.Apply(cmd)
	require.NoError(t, err, cmd.Op())
	return event
}

func (f *fixture) deploy(t *testing.T) PoolDeployed {
	t.Helper()
	event := mustApply(t, f.engine, DeployPool{
		Who:        alice,
		MarketID:   marketID,
		Amount:     fixed.Units(100),
		SpotPrices: []*uint256.Int{fixed.Fraction(1, 2), fixed.Fraction(1, 2)},
		SwapFee:    fixed.Fraction(1, 100),
	})
	deployed, ok := event.(PoolDeployed)
	require.True(t, ok)
	return deployed
}

func (f *fixture) hash(t *testing.T) common.Hash {
	t.Helper()
	h, err := f.engine.StateHash()
	require.NoError(t, err)
	return h
}

func TestDeployPool(t *testing.T) {
	f := newFixture(t, nil)
	deployed := f.deploy(t)

	p, err := f.engine.Pool(marketID)
	require.NoError(t, err)
	assert.Equal(t, []model.Asset{yes, no}, p.Assets())
	assert.Equal(t, fixed.Units(100), p.Tree.TotalShares())
	assert.Equal(t, deployed.LiquidityParameter, p.LiquidityParameter)
	assert.False(t, p.LiquidityParameter.Lt(minLiquidity))

	for i, asset := range p.Assets() {
		reserve, err := p.Reserve(asset)
		require.NoError(t, err)
		assert.Equal(t, deployed.AmountsIn[i], reserve)
		assert.Equal(t, reserve, f.ledger.Balance(p.AccountID, asset))
		// Leftover outcome units stay with the creator.
		left := new(uint256.Int).Sub(fixed.Units(100), reserve)
		assert.Equal(t, left, f.ledger.Balance(alice, asset))
	}
	assert.Equal(t, fixed.Units(900), f.ledger.Balance(alice, collateral))

	prices, err := p.SpotPrices()
	require.NoError(t, err)
	sum := fixed.Zero()
	for _, price := range prices {
		sum.Add(sum, price)
	}
	diff := new(uint256.Int).Sub(fixed.Base(), sum)
	assert.True(t, diff.Lt(uint256.NewInt(10)), "spot prices sum to %s", fixed.Format(sum))
}

func TestDeployPoolValidation(t *testing.T) {
	half := fixed.Fraction(1, 2)
	cases := []struct {
		name string
		cmd  DeployPool
		want error
	}{
		{
			name: "unknown market",
			cmd:  DeployPool{Who: alice, MarketID: 99, Amount: fixed.Units(10), SpotPrices: []*uint256.Int{half, half}, SwapFee: fixed.Fraction(1, 100)},
			want: model.ErrMarketNotFound,
		},
		{
			name: "wrong number of prices",
			cmd:  DeployPool{Who: alice, MarketID: marketID, Amount: fixed.Units(10), SpotPrices: []*uint256.Int{fixed.Base()}, SwapFee: fixed.Fraction(1, 100)},
			want: model.ErrIncorrectVecLen,
		},
		{
			name: "zero amount",
			cmd:  DeployPool{Who: alice, MarketID: marketID, Amount: fixed.Zero(), SpotPrices: []*uint256.Int{half, half}, SwapFee: fixed.Fraction(1, 100)},
			want: model.ErrZeroAmount,
		},
		{
			name: "price below min",
			cmd:  DeployPool{Who: alice, MarketID: marketID, Amount: fixed.Units(10), SpotPrices: []*uint256.Int{fixed.Fraction(1, 1000), fixed.Fraction(999, 1000)}, SwapFee: fixed.Fraction(1, 100)},
			want: model.ErrSpotPriceBelowMin,
		},
		{
			name: "prices do not sum to one",
			cmd:  DeployPool{Who: alice, MarketID: marketID, Amount: fixed.Units(10), SpotPrices: []*uint256.Int{half, fixed.Fraction(1, 4)}, SwapFee: fixed.Fraction(1, 100)},
			want: model.ErrInvalidSpotPrices,
		},
		{
			name: "swap fee below min",
			cmd:  DeployPool{Who: alice, MarketID: marketID, Amount: fixed.Units(10), SpotPrices: []*uint256.Int{half, half}, SwapFee: fixed.Fraction(1, 10000)},
			want: model.ErrSwapFeeBelowMin,
		},
		{
			name: "swap fee above max",
			cmd:  DeployPool{Who: alice, MarketID: marketID, Amount: fixed.Units(10), SpotPrices: []*uint256.Int{half, half}, SwapFee: fixed.Fraction(1, 5)},
			want: model.ErrSwapFeeAboveMax,
		},
		{
			name: "insufficient collateral",
			cmd:  DeployPool{Who: alice, MarketID: marketID, Amount: fixed.Units(5000), SpotPrices: []*uint256.Int{half, half}, SwapFee: fixed.Fraction(1, 100)},
			want: model.ErrInsufficientBalance,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			before := f.hash(t)
			_, err := f.engine.Apply(tc.cmd)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, f.hash(t))
		})
	}
}

func TestDuplicateDeployLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	f.deploy(t)
	before := f.hash(t)

	_, err := f.engine.Apply(DeployPool{
		Who:        bob,
		MarketID:   marketID,
		Amount:     fixed.Units(10),
		SpotPrices: []*uint256.Int{fixed.Fraction(1, 2), fixed.Fraction(1, 2)},
		SwapFee:    fixed.Fraction(1, 100),
	})
	require.ErrorIs(t, err, model.ErrDuplicatePool)
	assert.Equal(t, before, f.hash(t))
	assert.Equal(t, fixed.Units(1000), f.ledger.Balance(bob, collateral))
}

func TestBuySplitsFees(t *testing.T) {
	f := newFixture(t, fixed.Fraction(5, 1000))
	f.deploy(t)
	before, err := f.engine.Pool(marketID)
	require.NoError(t, err)

	amountIn := fixed.Units(2)
	event := mustApply(t, f.engine, Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: yes, AmountIn: amountIn, MinAmountOut: fixed.Units(1)})
	bought := event.(BuyExecuted)

	assert.Equal(t, fixed.Fraction(2, 100), bought.SwapFeeAmount)
	assert.Equal(t, fixed.Fraction(1, 100), bought.ExternalFeeAmount)
	assert.Equal(t, fixed.Fraction(1, 100), f.ledger.Balance(treasury, collateral))
	assert.Equal(t, bought.AmountOut, f.ledger.Balance(carol, yes))
	assert.Equal(t, fixed.Units(998), f.ledger.Balance(carol, collateral))

	remaining := new(uint256.Int).Sub(amountIn, bought.SwapFeeAmount)
	remaining.Sub(remaining, bought.ExternalFeeAmount)
	assert.Equal(t, fixed.Fraction(197, 100), remaining)

	after, err := f.engine.Pool(marketID)
	require.NoError(t, err)
	wantNo := new(uint256.Int).Add(before.Reserves[no], remaining)
	wantYes := new(uint256.Int).Add(before.Reserves[yes], remaining)
	wantYes.Sub(wantYes, bought.AmountOut)
	assert.Equal(t, wantNo, after.Reserves[no])
	assert.Equal(t, wantYes, after.Reserves[yes])
	assert.True(t, bought.AmountOut.Gt(remaining), "buying the cheap side returns more than the net input")

	// The pool account holds the reserves plus the swap fees owed to providers.
	assert.Equal(t, bought.SwapFeeAmount, f.ledger.Balance(after.AccountID, collateral))

	prices, err := after.SpotPrices()
	require.NoError(t, err)
	assert.True(t, prices[0].Gt(prices[1]))
}

func TestSellReturnsCollateral(t *testing.T) {
	f := newFixture(t, nil)
	f.deploy(t)
	mustApply(t, f.engine, BuyCompleteSet{Who: carol, MarketID: marketID, Amount: fixed.Units(10)})
	before, err := f.engine.Pool(marketID)
	require.NoError(t, err)

	amountIn := fixed.Units(5)
	event := mustApply(t, f.engine, Sell{Who: carol, MarketID: marketID, AssetCount: 2, AssetIn: no, AmountIn: amountIn, MinAmountOut: fixed.Units(1)})
	sold := event.(SellExecuted)

	gross := new(uint256.Int).Add(sold.AmountOut, sold.SwapFeeAmount)
	assert.True(t, gross.Lt(amountIn))
	assert.True(t, sold.ExternalFeeAmount.IsZero())
	wantCollateral := new(uint256.Int).Add(fixed.Units(990), sold.AmountOut)
	assert.Equal(t, wantCollateral, f.ledger.Balance(carol, collateral))
	assert.Equal(t, fixed.Units(5), f.ledger.Balance(carol, no))

	after, err := f.engine.Pool(marketID)
	require.NoError(t, err)
	wantYes := new(uint256.Int).Sub(before.Reserves[yes], gross)
	wantNo := new(uint256.Int).Add(before.Reserves[no], amountIn)
	wantNo.Sub(wantNo, gross)
	assert.Equal(t, wantYes, after.Reserves[yes])
	assert.Equal(t, wantNo, after.Reserves[no])
}

func TestTradeErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.deploy(t)
	before := f.hash(t)

	_, err := f.engine.Apply(Buy{Who: carol, MarketID: marketID, AssetCount: 3, AssetOut: yes, AmountIn: fixed.Units(1)})
	require.ErrorIs(t, err, model.ErrIncorrectAssetCount)

	_, err = f.engine.Apply(Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: model.Outcome(marketID, 5), AmountIn: fixed.Units(1)})
	require.ErrorIs(t, err, model.ErrAssetNotFound)

	_, err = f.engine.Apply(Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: yes, AmountIn: fixed.Zero()})
	require.ErrorIs(t, err, model.ErrZeroAmount)

	_, err = f.engine.Apply(Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: yes, AmountIn: fixed.Units(10000)})
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	_, err = f.engine.Apply(Sell{Who: carol, MarketID: marketID, AssetCount: 2, AssetIn: yes, AmountIn: fixed.Units(1)})
	require.ErrorIs(t, err, model.ErrInsufficientBalance)

	_, err = f.engine.Apply(Buy{Who: carol, MarketID: 99, AssetCount: 2, AssetOut: yes, AmountIn: fixed.Units(1)})
	require.ErrorIs(t, err, model.ErrMarketNotFound)

	assert.Equal(t, before, f.hash(t))
}

func TestSlippageRollsBack(t *testing.T) {
	f := newFixture(t, fixed.Fraction(5, 1000))
	f.deploy(t)
	before := f.hash(t)

	_, err := f.engine.Apply(Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: yes, AmountIn: fixed.Units(2), MinAmountOut: fixed.Units(50)})
	require.ErrorIs(t, err, model.ErrAmountOutBelowMin)
	assert.Equal(t, model.ClassValidation, model.ClassOf(err))

	assert.Equal(t, before, f.hash(t))
	assert.Equal(t, fixed.Units(1000), f.ledger.Balance(carol, collateral))
	assert.True(t, f.ledger.Balance(treasury, collateral).IsZero())
}

func TestJoinBelowThresholdIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.deploy(t)
	mustApply(t, f.engine, BuyCompleteSet{Who: bob, MarketID: marketID, Amount: fixed.Units(10)})
	before := f.hash(t)

	_, err := f.engine.Apply(Join{
		Who:              bob,
		MarketID:         marketID,
		PoolSharesAmount: fixed.Fraction(1, 2),
		MaxAmountsIn:     []*uint256.Int{fixed.Units(10), fixed.Units(10)},
	})
	require.ErrorIs(t, err, model.ErrMinRelativeLiquidityThresholdViolated)
	assert.Equal(t, model.ClassThreshold, model.ClassOf(err))
	assert.Equal(t, before, f.hash(t))
}

func TestJoinAndExit(t *testing.T) {
	f := newFixture(t, nil)
	f.deploy(t)
	mustApply(t, f.engine, BuyCompleteSet{Who: bob, MarketID: marketID, Amount: fixed.Units(100)})
	before, err := f.engine.Pool(marketID)
	require.NoError(t, err)

	_, err = f.engine.Apply(Join{Who: bob, MarketID: marketID, PoolSharesAmount: fixed.Units(50), MaxAmountsIn: []*uint256.Int{fixed.Units(1), fixed.Units(1)}})
	require.ErrorIs(t, err, model.ErrAmountInAboveMax)

	event := mustApply(t, f.engine, Join{Who: bob, MarketID: marketID, PoolSharesAmount: fixed.Units(50), MaxAmountsIn: []*uint256.Int{fixed.Units(60), fixed.Units(60)}})
	joined := event.(JoinExecuted)
	require.Len(t, joined.AmountsIn, 2)

	after, err := f.engine.Pool(marketID)
	require.NoError(t, err)
	assert.Equal(t, fixed.Units(150), after.Tree.TotalShares())
	for i, asset := range after.Assets() {
		want := new(uint256.Int).Add(before.Reserves[asset], joined.AmountsIn[i])
		assert.Equal(t, want, after.Reserves[asset])
	}
	assert.True(t, after.LiquidityParameter.Gt(before.LiquidityParameter))

	_, err = f.engine.Apply(Exit{Who: carol, MarketID: marketID, PoolSharesAmount: fixed.Units(1), MinAmountsOut: []*uint256.Int{fixed.Zero(), fixed.Zero()}})
	require.ErrorIs(t, err, model.ErrAccountNotFound)

	_, err = f.engine.Apply(Exit{Who: bob, MarketID: marketID, PoolSharesAmount: fixed.Units(51), MinAmountsOut: []*uint256.Int{fixed.Zero(), fixed.Zero()}})
	require.ErrorIs(t, err, model.ErrInsufficientStake)

	event = mustApply(t, f.engine, Exit{Who: bob, MarketID: marketID, PoolSharesAmount: fixed.Units(50), MinAmountsOut: []*uint256.Int{fixed.Zero(), fixed.Zero()}})
	exited := event.(ExitExecuted)
	for i := range exited.AmountsOut {
		// The exit fee keeps a little of every reserve in the pool.
		assert.True(t, exited.AmountsOut[i].Lt(joined.AmountsIn[i]))
	}
	final, err := f.engine.Pool(marketID)
	require.NoError(t, err)
	assert.Equal(t, fixed.Units(100), final.Tree.TotalShares())
	assert.False(t, final.Tree.Contains(bob))
}

func TestProvidersEarnSwapFees(t *testing.T) {
	f := newFixture(t, nil)
	f.deploy(t)
	mustApply(t, f.engine, BuyCompleteSet{Who: bob, MarketID: marketID, Amount: fixed.Units(100)})
	mustApply(t, f.engine, Join{Who: bob, MarketID: marketID, PoolSharesAmount: fixed.Units(50), MaxAmountsIn: []*uint256.Int{fixed.Units(60), fixed.Units(60)}})

	event := mustApply(t, f.engine, Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: yes, AmountIn: fixed.Units(3)})
	swapFees := event.(BuyExecuted).SwapFeeAmount
	assert.Equal(t, fixed.Fraction(3, 100), swapFees)

	aliceFees := mustApply(t, f.engine, WithdrawFees{Who: alice, MarketID: marketID}).(FeesWithdrawn).Amount
	bobFees := mustApply(t, f.engine, WithdrawFees{Who: bob, MarketID: marketID}).(FeesWithdrawn).Amount

	assert.Equal(t, fixed.Fraction(2, 100), aliceFees)
	assert.Equal(t, fixed.Fraction(1, 100), bobFees)
	assert.Equal(t, new(uint256.Int).Add(fixed.Units(1000-100), aliceFees), f.ledger.Balance(alice, collateral))

	again := mustApply(t, f.engine, WithdrawFees{Who: alice, MarketID: marketID}).(FeesWithdrawn).Amount
	assert.True(t, again.IsZero())

	p, err := f.engine.Pool(marketID)
	require.NoError(t, err)
	assert.True(t, f.ledger.Balance(p.AccountID, collateral).IsZero())
}

func TestLastProviderExitDestroysPool(t *testing.T) {
	f := newFixture(t, nil)
	deployed := f.deploy(t)
	mustApply(t, f.engine, Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: yes, AmountIn: fixed.Units(1)})

	event := mustApply(t, f.engine, Exit{Who: alice, MarketID: marketID, PoolSharesAmount: fixed.Units(100), MinAmountsOut: []*uint256.Int{fixed.Zero(), fixed.Zero()}})
	destroyed, ok := event.(PoolDestroyed)
	require.True(t, ok)
	assert.Equal(t, fixed.Fraction(1, 100), destroyed.FeesWithdrawn)
	assert.NotEmpty(t, destroyed.Swept)

	_, err := f.engine.Pool(marketID)
	require.ErrorIs(t, err, model.ErrPoolNotFound)
	assert.Empty(t, f.ledger.Assets(deployed.AccountID))
	for asset, amount := range destroyed.Swept {
		assert.Equal(t, amount, f.ledger.Balance(sink, asset))
	}
	assert.Empty(t, f.engine.MarketIDs())
}

func TestExitAfterResolutionHasNoExitFee(t *testing.T) {
	f := newFixture(t, nil)
	deployed := f.deploy(t)
	mustApply(t, f.engine, ResolveMarket{MarketID: marketID, Outcome: 0})

	_, err := f.engine.Apply(Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: yes, AmountIn: fixed.Units(1)})
	require.ErrorIs(t, err, model.ErrMarketNotActive)

	event := mustApply(t, f.engine, Exit{Who: alice, MarketID: marketID, PoolSharesAmount: fixed.Units(100), MinAmountsOut: []*uint256.Int{fixed.Zero(), fixed.Zero()}})
	destroyed := event.(PoolDestroyed)
	assert.Equal(t, deployed.AmountsIn, destroyed.AmountsOut)
	assert.Empty(t, destroyed.Swept)
	assert.Equal(t, fixed.Units(100), f.ledger.Balance(alice, yes))
	assert.Equal(t, fixed.Units(100), f.ledger.Balance(alice, no))
}

func importedEngine(t *testing.T, snap model.StateSnapshot, externalRate *uint256.Int) *Engine {
	t.Helper()
	l := ledger.New()
	var external ExternalFees
	if externalRate != nil {
		p, err := fees.NewPercentage(externalRate, treasury, l)
		require.NoError(t, err)
		external = p
	}
	e := New(Config{ExitFeeSink: sink}, l, market.NewRegistry(), nil, external, nil)
	require.NoError(t, e.Import(snap))
	return e
}

func TestExportImportPreservesStateHash(t *testing.T) {
	f := newFixture(t, fixed.Fraction(5, 1000))
	f.deploy(t)
	mustApply(t, f.engine, Buy{Who: carol, MarketID: marketID, AssetCount: 2, AssetOut: no, AmountIn: fixed.Units(4)})

	snap, err := f.engine.Export(12)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), snap.LastSeq)
	assert.Equal(t, f.hash(t), snap.StateHash)
	require.Len(t, snap.Pools, 1)

	restored := importedEngine(t, snap, fixed.Fraction(5, 1000))
	h, err := restored.StateHash()
	require.NoError(t, err)
	assert.Equal(t, snap.StateHash, h)

	// Engines with the same fee policy keep evolving identically.
	cmd := Sell{Who: carol, MarketID: marketID, AssetCount: 2, AssetIn: no, AmountIn: fixed.Units(1)}
	_, err = f.engine.Apply(cmd)
	require.NoError(t, err)
	_, err = restored.Apply(cmd)
	require.NoError(t, err)
	h, err = restored.StateHash()
	require.NoError(t, err)
	assert.Equal(t, f.hash(t), h)

	// Without external fees the same sell leaves a different state.
	feeless := importedEngine(t, snap, nil)
	_, err = feeless.Apply(cmd)
	require.NoError(t, err)
	h, err = feeless.StateHash()
	require.NoError(t, err)
	assert.NotEqual(t, f.hash(t), h)

	snap.StateHash = common.Hash{1}
	err = restored.Import(snap)
	require.ErrorIs(t, err, model.ErrUnexpected)
	h, err = restored.StateHash()
	require.NoError(t, err)
	assert.Equal(t, f.hash(t), h)
}
