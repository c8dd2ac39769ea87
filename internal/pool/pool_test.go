package pool

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/fixed"
	"neoswaps/internal/liquiditytree"
	"neoswaps/internal/model"
)

var (
	deployer = common.HexToAddress("0x1111111111111111111111111111111111111111")
	yes      = model.Outcome(7, 0)
	no       = model.Outcome(7, 1)
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	tree, err := liquiditytree.New(liquiditytree.DefaultMaxDepth, deployer, fixed.Units(100))
	require.NoError(t, err)
	liquidity, err := fixed.Parse("144.2695040888")
	require.NoError(t, err)
	return New(7, model.Collateral(0), map[model.Asset]*uint256.Int{
		yes: fixed.Units(100),
		no:  fixed.Units(100),
	}, liquidity, fixed.Fraction(1, 100), tree)
}

func TestAccountIDIsDeterministic(t *testing.T) {
	assert.Equal(t, AccountIDFor(7), AccountIDFor(7))
	assert.NotEqual(t, AccountIDFor(7), AccountIDFor(8))
	assert.NotEqual(t, common.Address{}, AccountIDFor(0))
}

func TestBuyUpdatesReserves(t *testing.T) {
	p := newTestPool(t)
	amountIn := fixed.Units(2)

	out, err := p.CalculateSwapAmountOutForBuy(yes, amountIn)
	require.NoError(t, err)
	require.NoError(t, p.ApplyBuy(yes, amountIn, out))

	assert.Equal(t, new(uint256.Int).Sub(fixed.Units(102), out), p.Reserves[yes])
	assert.Equal(t, fixed.Units(102), p.Reserves[no])

	priceYes, err := p.SpotPrice(yes)
	require.NoError(t, err)
	priceNo, err := p.SpotPrice(no)
	require.NoError(t, err)
	assert.True(t, priceYes.Gt(priceNo))
}

func TestSellUpdatesReserves(t *testing.T) {
	p := newTestPool(t)
	amountIn := fixed.Units(3)

	out, err := p.CalculateSwapAmountOutForSell(no, amountIn)
	require.NoError(t, err)
	require.NoError(t, p.ApplySell(no, amountIn, out))

	wantNo := new(uint256.Int).Sub(fixed.Units(103), out)
	wantYes := new(uint256.Int).Sub(fixed.Units(100), out)
	assert.Equal(t, wantNo, p.Reserves[no])
	assert.Equal(t, wantYes, p.Reserves[yes])
}

func TestUnknownAsset(t *testing.T) {
	p := newTestPool(t)
	_, err := p.CalculateSwapAmountOutForBuy(model.Outcome(7, 5), fixed.Units(1))
	assert.True(t, errors.Is(err, model.ErrAssetNotFound))
	_, err = p.SpotPrice(model.Collateral(0))
	assert.True(t, errors.Is(err, model.ErrAssetNotFound))
}

func TestCloneIsDeep(t *testing.T) {
	p := newTestPool(t)
	c := p.Clone()
	require.NoError(t, c.IncreaseReserve(yes, fixed.Units(1)))
	_, err := c.Tree.Join(common.HexToAddress("0x2222222222222222222222222222222222222222"), fixed.Units(1))
	require.NoError(t, err)
	c.LiquidityParameter.AddUint64(c.LiquidityParameter, 1)

	assert.Equal(t, fixed.Units(100), p.Reserves[yes])
	assert.Equal(t, fixed.Units(100), p.Tree.TotalShares())
	assert.NotEqual(t, p.LiquidityParameter, c.LiquidityParameter)
}

func TestCodecRoundTrip(t *testing.T) {
	p := newTestPool(t)
	require.NoError(t, p.Tree.DepositFees(fixed.Units(1)))

	enc, err := p.Encode()
	require.NoError(t, err)

	decoded, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, p.MarketID, decoded.MarketID)
	assert.Equal(t, p.AccountID, decoded.AccountID)
	assert.Equal(t, p.Reserves, decoded.Reserves)
	assert.Equal(t, p.LiquidityParameter, decoded.LiquidityParameter)
	assert.Equal(t, p.SwapFee, decoded.SwapFee)
	assert.Equal(t, p.Tree.TotalShares(), decoded.Tree.TotalShares())

	again, err := decoded.Encode()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(enc, again))
}
