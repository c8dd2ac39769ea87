package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/engine"
	"neoswaps/internal/ledger"
	"neoswaps/internal/market"
	"neoswaps/internal/model"
	"neoswaps/internal/storage"
)

const (
	aliceHex = "0x00000000000000000000000000000000000000a1"
	bobHex   = "0x00000000000000000000000000000000000000b0"
)

var sink = common.HexToAddress("0x00000000000000000000000000000000000000ff")

func newEngine() *engine.Engine {
	return engine.New(engine.Config{ExitFeeSink: sink}, ledger.New(), market.NewRegistry(), nil, nil, nil)
}

func command(t *testing.T, seq uint64, op string, args interface{}) model.CommandRecord {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return model.CommandRecord{Seq: seq, Op: op, Timestamp: 1_700_000_000 + seq*60, Args: raw}
}

func writeCommands(t *testing.T, path string, records []model.CommandRecord) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	defer file.Close()
	for _, r := range records {
		line, err := json.Marshal(r)
		require.NoError(t, err)
		_, err = file.Write(append(line, '\n'))
		require.NoError(t, err)
	}
}

func baseCommands(t *testing.T) []model.CommandRecord {
	return []model.CommandRecord{
		command(t, 1, model.OpCreateMarket, model.CreateMarketArgs{MarketID: 1, Creator: aliceHex, Collateral: "collateral:0", Outcomes: 2}),
		command(t, 2, model.OpFund, model.FundArgs{Who: aliceHex, Asset: "collateral:0", Amount: "1000"}),
		command(t, 3, model.OpFund, model.FundArgs{Who: bobHex, Asset: "collateral:0", Amount: "1000"}),
		command(t, 4, model.OpDeployPool, model.DeployPoolArgs{Who: aliceHex, MarketID: 1, Amount: "100", SpotPrices: []string{"0.5", "0.5"}, SwapFee: "0.01"}),
		command(t, 5, model.OpBuy, model.TradeArgs{Who: bobHex, MarketID: 1, AssetCount: 2, Asset: "outcome:1:0", AmountIn: "2"}),
		command(t, 6, model.OpBuy, model.TradeArgs{Who: bobHex, MarketID: 1, AssetCount: 2, Asset: "outcome:1:0", AmountIn: "0"}),
		{Seq: 7, Op: "bogus", Timestamp: 1_700_000_420, Args: json.RawMessage(`{}`)},
		command(t, 8, model.OpWithdrawFees, model.WithdrawFeesArgs{Who: aliceHex, MarketID: 1}),
	}
}

type fakePoolStore struct {
	upserts map[uint64]model.PoolRecord
	order   []uint64
	deletes []uint64
}

func newFakePoolStore() *fakePoolStore {
	return &fakePoolStore{upserts: make(map[uint64]model.PoolRecord)}
}

func (f *fakePoolStore) UpsertPools(_ context.Context, pools []model.PoolRecord) error {
	for _, p := range pools {
		f.upserts[p.MarketID] = p
		f.order = append(f.order, p.MarketID)
	}
	return nil
}

func (f *fakePoolStore) DeletePools(_ context.Context, ids []uint64) error {
	f.deletes = append(f.deletes, ids...)
	return nil
}

type paths struct {
	input, out, errors, checkpoint, state string
}

func newPaths(t *testing.T) paths {
	dir := t.TempDir()
	return paths{
		input:      filepath.Join(dir, "commands.jsonl"),
		out:        filepath.Join(dir, "out", "events.jsonl"),
		errors:     filepath.Join(dir, "out", "errors.jsonl"),
		checkpoint: filepath.Join(dir, "checkpoint.json"),
		state:      filepath.Join(dir, "state.json"),
	}
}

func newRunner(p paths, eng *engine.Engine, pools PoolStore) *Runner {
	return NewRunner(RunConfig{
		Input:             p.input,
		BatchSize:         3,
		CheckpointPath:    p.checkpoint,
		CheckpointEnabled: true,
		StatePath:         p.state,
	}, eng, storage.NewJsonlStorage(p.out, p.errors), pools, nil)
}

func readJSONL[T any](t *testing.T, path string) []T {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []T
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var v T
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &v))
		out = append(out, v)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestRunnerReplaysCommands(t *testing.T) {
	p := newPaths(t)
	writeCommands(t, p.input, baseCommands(t))
	pools := newFakePoolStore()
	eng := newEngine()

	summary, err := newRunner(p, eng, pools).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Applied: 6, Rejected: 2, LastSeq: 8}, summary)

	entries := readJSONL[model.JournalRecord](t, p.out)
	require.Len(t, entries, 6)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.EventName
	}
	assert.Equal(t, []string{
		model.EventMarketCreated, model.EventFunded, model.EventFunded,
		model.EventPoolDeployed, model.EventBuyExecuted, model.EventFeesWithdrawn,
	}, names)

	buy := entries[4]
	require.NotNil(t, buy.PoolMeta)
	assert.Equal(t, 1, buy.PoolMeta.Providers)
	assert.Len(t, buy.PoolMeta.SpotPrices, 2)
	var trade model.TradeEventData
	require.NoError(t, json.Unmarshal(buy.Payload, &trade))
	assert.Equal(t, "0.02", trade.SwapFeeAmount)
	assert.Equal(t, "2", trade.AmountIn)

	errs := readJSONL[model.CommandError](t, p.errors)
	require.Len(t, errs, 2)
	assert.Equal(t, uint64(6), errs[0].Seq)
	assert.Equal(t, "ZeroAmount", errs[0].Name)
	assert.Equal(t, "validation", errs[0].Class)
	assert.Equal(t, uint64(7), errs[1].Seq)
	assert.Equal(t, classDecode, errs[1].Class)

	require.Contains(t, pools.upserts, uint64(1))
	assert.Equal(t, uint64(8), pools.upserts[1].LastSeq)
	assert.NotEmpty(t, pools.upserts[1].Encoded)

	cp, ok, err := NewCheckpointStore(p.checkpoint, true).Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(8), cp.LastSeq)
	hash, err := eng.StateHash()
	require.NoError(t, err)
	assert.Equal(t, hash, cp.StateHash)
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	p := newPaths(t)
	writeCommands(t, p.input, baseCommands(t))
	_, err := newRunner(p, newEngine(), nil).Run(context.Background())
	require.NoError(t, err)

	writeCommands(t, p.input, []model.CommandRecord{
		command(t, 9, model.OpExit, model.LiquidityArgs{Who: aliceHex, MarketID: 1, PoolSharesAmount: "100", Amounts: []string{"0", "0"}}),
	})

	pools := newFakePoolStore()
	resumed := newEngine()
	summary, err := newRunner(p, resumed, pools).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{Applied: 1, LastSeq: 9}, summary)
	assert.Equal(t, []uint64{1}, pools.deletes)
	assert.Empty(t, resumed.MarketIDs())

	entries := readJSONL[model.JournalRecord](t, p.out)
	require.Len(t, entries, 7)
	assert.Equal(t, model.EventPoolDestroyed, entries[6].EventName)
	assert.Nil(t, entries[6].PoolMeta)

	// A fresh replay of the whole stream reaches the same state.
	fresh := newPaths(t)
	data, err := os.ReadFile(p.input)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fresh.input, data, 0o644))
	full := newEngine()
	_, err = newRunner(fresh, full, nil).Run(context.Background())
	require.NoError(t, err)

	want, err := full.StateHash()
	require.NoError(t, err)
	got, err := resumed.StateHash()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	summary, err = newRunner(p, newEngine(), nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Summary{LastSeq: 9}, summary)
}

func TestRunnerRejectsCheckpointWithoutState(t *testing.T) {
	p := newPaths(t)
	writeCommands(t, p.input, baseCommands(t))
	require.NoError(t, NewCheckpointStore(p.checkpoint, true).Save(5, common.Hash{}))

	_, err := newRunner(p, newEngine(), nil).Run(context.Background())
	require.Error(t, err)
}

func TestReadCommandsBounds(t *testing.T) {
	p := newPaths(t)
	writeCommands(t, p.input, baseCommands(t))

	records, err := ReadCommands(p.input, 2, 5)
	require.NoError(t, err)
	seqs := make([]uint64, len(records))
	for i, r := range records {
		seqs[i] = r.Seq
	}
	assert.Equal(t, []uint64{3, 4, 5}, seqs)
	assert.True(t, sort.SliceIsSorted(seqs, func(i, j int) bool { return seqs[i] < seqs[j] }))
}

func TestReadCommandsRejectsOutOfOrder(t *testing.T) {
	p := newPaths(t)
	cmds := baseCommands(t)
	writeCommands(t, p.input, []model.CommandRecord{cmds[1], cmds[0]})

	_, err := ReadCommands(p.input, 0, 0)
	require.Error(t, err)
}

func TestRunnerSyncsPoolsInMarketOrder(t *testing.T) {
	p := newPaths(t)
	records := []model.CommandRecord{
		command(t, 1, model.OpFund, model.FundArgs{Who: aliceHex, Asset: "collateral:0", Amount: "1000"}),
	}
	seq := uint64(2)
	for _, id := range []uint64{3, 1, 2} {
		records = append(records,
			command(t, seq, model.OpCreateMarket, model.CreateMarketArgs{MarketID: id, Creator: aliceHex, Collateral: "collateral:0", Outcomes: 2}),
			command(t, seq+1, model.OpDeployPool, model.DeployPoolArgs{Who: aliceHex, MarketID: id, Amount: "100", SpotPrices: []string{"0.5", "0.5"}, SwapFee: "0.01"}),
		)
		seq += 2
	}
	writeCommands(t, p.input, records)

	pools := newFakePoolStore()
	r := NewRunner(RunConfig{Input: p.input, BatchSize: 10, StatePath: p.state}, newEngine(), storage.NewJsonlStorage(p.out, p.errors), pools, nil)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Applied)
	assert.Equal(t, []uint64{1, 2, 3}, pools.order)
}
