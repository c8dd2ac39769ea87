package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
	ztg   = model.Collateral(0)
)

func TestTransfer(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(alice, ztg, fixed.Units(10)))
	require.NoError(t, l.Transfer(ztg, alice, bob, fixed.Units(4)))

	assert.Equal(t, fixed.Units(6), l.Balance(alice, ztg))
	assert.Equal(t, fixed.Units(4), l.Balance(bob, ztg))
	assert.Equal(t, fixed.Units(10), l.TotalIssuance(ztg))

	err := l.Transfer(ztg, bob, alice, fixed.Units(5))
	assert.True(t, errors.Is(err, model.ErrInsufficientBalance))
	assert.Equal(t, fixed.Units(4), l.Balance(bob, ztg))
}

func TestZeroBalancesAreDropped(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(alice, ztg, fixed.Units(1)))
	require.NoError(t, l.Burn(alice, ztg, fixed.Units(1)))
	assert.Empty(t, l.Assets(alice))
	assert.Empty(t, l.Export())
}

func TestSweep(t *testing.T) {
	l := New()
	yes := model.Outcome(1, 0)
	require.NoError(t, l.Mint(alice, ztg, fixed.Units(1)))
	require.NoError(t, l.Mint(alice, yes, fixed.Units(2)))

	moved, err := l.Sweep(alice, bob)
	require.NoError(t, err)
	assert.Len(t, moved, 2)
	assert.Empty(t, l.Assets(alice))
	assert.Equal(t, fixed.Units(2), l.Balance(bob, yes))
}

func TestSnapshotRestore(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(alice, ztg, fixed.Units(3)))
	snap := l.Snapshot()

	require.NoError(t, l.Transfer(ztg, alice, bob, fixed.Units(3)))
	l.Restore(snap)

	assert.Equal(t, fixed.Units(3), l.Balance(alice, ztg))
	assert.True(t, l.Balance(bob, ztg).IsZero())

	// The snapshot stays usable after a restore.
	require.NoError(t, l.Burn(alice, ztg, fixed.Units(3)))
	assert.Equal(t, fixed.Units(3), snap.Balance(alice, ztg))
}

func TestExportImport(t *testing.T) {
	l := New()
	require.NoError(t, l.Mint(bob, ztg, fixed.Units(2)))
	require.NoError(t, l.Mint(alice, model.Outcome(1, 1), fixed.Units(5)))
	require.NoError(t, l.Mint(alice, ztg, fixed.Units(1)))

	records := l.Export()
	require.Len(t, records, 3)
	assert.Equal(t, alice, records[0].Account)
	assert.Equal(t, ztg, records[0].Asset)

	other := New()
	require.NoError(t, other.Import(records))
	assert.Equal(t, records, other.Export())
}
