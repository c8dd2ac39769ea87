package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoswaps/internal/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestJsonlStorageAppends(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "events.jsonl")
	errs := filepath.Join(dir, "errors.jsonl")
	s := NewJsonlStorage(out, errs)
	ctx := context.Background()

	first := []model.JournalEntry{{Seq: 1, Op: model.OpFund, EventName: model.EventFunded, Payload: model.TransferEventData{Who: "0x1", Asset: "collateral:1", Amount: "5"}}}
	second := []model.JournalEntry{{Seq: 2, Op: model.OpWithdrawFees, EventName: model.EventFeesWithdrawn, MarketID: 3}}
	require.NoError(t, s.PutEntries(ctx, first))
	require.NoError(t, s.PutEntries(ctx, second))
	require.NoError(t, s.PutEntries(ctx, nil))
	require.NoError(t, s.PutErrors(ctx, []model.CommandError{{Seq: 3, Op: model.OpBuy, Error: "zero amount", Name: "ZeroAmount", Class: "validation"}}))

	lines := readLines(t, out)
	require.Len(t, lines, 2)
	var rec model.JournalRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, uint64(1), rec.Seq)
	assert.Equal(t, model.EventFunded, rec.EventName)

	var payload model.TransferEventData
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, "5", payload.Amount)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, uint64(3), rec.MarketID)

	errLines := readLines(t, errs)
	require.Len(t, errLines, 1)
	var cmdErr model.CommandError
	require.NoError(t, json.Unmarshal([]byte(errLines[0]), &cmdErr))
	assert.Equal(t, "ZeroAmount", cmdErr.Name)
}

func TestJsonlStorageSkipsReplayedSeqs(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "events.jsonl")
	errs := filepath.Join(dir, "errors.jsonl")
	ctx := context.Background()

	entries := func(seqs ...uint64) []model.JournalEntry {
		batch := make([]model.JournalEntry, len(seqs))
		for i, seq := range seqs {
			batch[i] = model.JournalEntry{Seq: seq, EventName: model.EventFunded}
		}
		return batch
	}

	first := NewJsonlStorage(out, errs)
	require.NoError(t, first.PutEntries(ctx, entries(1, 2, 3)))
	require.NoError(t, first.PutErrors(ctx, []model.CommandError{{Seq: 2, Class: "decode"}}))

	// A restarted writer replays the same batch plus new records.
	second := NewJsonlStorage(out, errs)
	require.NoError(t, second.PutEntries(ctx, entries(2, 3, 4)))
	require.NoError(t, second.PutErrors(ctx, []model.CommandError{{Seq: 2, Class: "decode"}, {Seq: 5, Class: "validation"}}))
	require.NoError(t, second.PutEntries(ctx, entries(4, 6)))

	var seqs []uint64
	for _, line := range readLines(t, out) {
		var rec model.JournalRecord
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		seqs = append(seqs, rec.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 6}, seqs)
	assert.Len(t, readLines(t, errs), 2)
}

type recordingSink struct {
	entries int
	errs    int
}

func (r *recordingSink) PutEntries(_ context.Context, entries []model.JournalEntry) error {
	r.entries += len(entries)
	return nil
}

func (r *recordingSink) PutErrors(_ context.Context, errs []model.CommandError) error {
	r.errs += len(errs)
	return nil
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := Multi{a, b}
	require.NoError(t, m.PutEntries(context.Background(), make([]model.JournalEntry, 2)))
	require.NoError(t, m.PutErrors(context.Background(), make([]model.CommandError, 1)))
	assert.Equal(t, 2, a.entries)
	assert.Equal(t, 2, b.entries)
	assert.Equal(t, 1, a.errs)
	assert.Equal(t, 1, b.errs)
}
