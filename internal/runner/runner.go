// Package runner replays a command stream through the engine, journals the resulting
// events and checkpoints progress together with a full state snapshot.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"neoswaps/internal/engine"
	"neoswaps/internal/model"
	"neoswaps/internal/storage"
)

const classDecode = "decode"

// RunConfig holds runtime settings for the runner.
type RunConfig struct {
	Input             string
	ToSeq             uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	StatePath         string
	MaxRetries        int
	RetryBackoff      time.Duration
}

// PoolStore receives the current state of every pool touched by a batch.
type PoolStore interface {
	UpsertPools(ctx context.Context, pools []model.PoolRecord) error
	DeletePools(ctx context.Context, marketIDs []uint64) error
}

// Summary reports what a run did.
type Summary struct {
	Applied  int
	Rejected int
	LastSeq  uint64
}

// Runner feeds commands to an engine and writes the results to storage.
type Runner struct {
	cfg        RunConfig
	engine     *engine.Engine
	storage    storage.Storage
	pools      PoolStore
	logger     *zap.Logger
	retry      retryPolicy
	checkpoint *CheckpointStore
	snapshots  *SnapshotStore
}

// NewRunner builds a Runner. pools may be nil.
func NewRunner(cfg RunConfig, eng *engine.Engine, storageSink storage.Storage, pools PoolStore, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		engine:     eng,
		storage:    storageSink,
		pools:      pools,
		logger:     logger,
		retry:      retryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff},
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		snapshots:  NewSnapshotStore(cfg.StatePath),
	}
}

// Run replays every command after the last checkpoint.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if r.engine == nil {
		return Summary{}, fmt.Errorf("engine is nil")
	}
	if r.storage == nil {
		return Summary{}, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return Summary{}, fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Input == "" {
		return Summary{}, fmt.Errorf("input path is required")
	}

	lastSeq, err := r.resume()
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{LastSeq: lastSeq}

	records, err := ReadCommands(r.cfg.Input, lastSeq, r.cfg.ToSeq)
	if err != nil {
		return summary, err
	}
	if len(records) == 0 {
		r.logger.Info("nothing to apply", zap.Uint64("last_seq", lastSeq))
		return summary, nil
	}

	ranges, err := SplitRange(0, uint64(len(records)-1), r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	for _, span := range ranges {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		batch := records[span.From : span.To+1]
		applied, rejected, err := r.applyBatch(ctx, batch)
		if err != nil {
			return summary, err
		}
		summary.Applied += applied
		summary.Rejected += rejected
		summary.LastSeq = batch[len(batch)-1].Seq

		r.logger.Info("batch complete",
			zap.Int("applied", applied),
			zap.Int("rejected", rejected),
			zap.Uint64("from_seq", batch[0].Seq),
			zap.Uint64("to_seq", summary.LastSeq),
		)
	}

	return summary, nil
}

// resume restores the engine from the state snapshot and returns the last applied seq.
func (r *Runner) resume() (uint64, error) {
	snap, haveSnap, err := r.snapshots.Load()
	if err != nil {
		return 0, err
	}
	if haveSnap {
		if err := r.engine.Import(snap); err != nil {
			return 0, fmt.Errorf("restore state: %w", err)
		}
	}

	cp, haveCheckpoint, err := r.checkpoint.Load()
	if err != nil {
		return 0, err
	}
	if !haveCheckpoint {
		if haveSnap {
			r.logger.Info("resume from state snapshot", zap.Uint64("last_seq", snap.LastSeq))
			return snap.LastSeq, nil
		}
		return 0, nil
	}
	if !haveSnap {
		if cp.LastSeq == 0 {
			return 0, nil
		}
		return 0, fmt.Errorf("checkpoint at seq %d but no state snapshot to resume from", cp.LastSeq)
	}
	if cp.LastSeq != snap.LastSeq || cp.StateHash != snap.StateHash {
		return 0, fmt.Errorf("checkpoint (seq %d, %s) does not match state snapshot (seq %d, %s)",
			cp.LastSeq, cp.StateHash.Hex(), snap.LastSeq, snap.StateHash.Hex())
	}
	r.logger.Info("resume from checkpoint", zap.Uint64("last_seq", cp.LastSeq), zap.String("state_hash", cp.StateHash.Hex()))
	return cp.LastSeq, nil
}

func (r *Runner) applyBatch(ctx context.Context, batch []model.CommandRecord) (int, int, error) {
	entries := make([]model.JournalEntry, 0, len(batch))
	var rejected []model.CommandError
	touched := make(map[uint64]struct{})

	for _, record := range batch {
		cmd, err := ParseCommand(record)
		if err != nil {
			rejected = append(rejected, model.CommandError{
				Seq:       record.Seq,
				Op:        record.Op,
				Timestamp: record.Timestamp,
				Error:     err.Error(),
				Class:     classDecode,
			})
			r.logger.Warn("decode command", zap.Uint64("seq", record.Seq), zap.String("op", record.Op), zap.Error(err))
			continue
		}

		event, err := r.engine.Apply(cmd)
		if err != nil {
			rejected = append(rejected, model.CommandError{
				Seq:       record.Seq,
				Op:        record.Op,
				Timestamp: record.Timestamp,
				Error:     err.Error(),
				Name:      model.NameOf(err),
				Class:     model.ClassOf(err).String(),
			})
			continue
		}

		p, _ := r.engine.Pool(event.Market())
		entry, err := buildJournalEntry(record, event, p)
		if err != nil {
			return 0, 0, fmt.Errorf("journal seq %d: %w", record.Seq, err)
		}
		entries = append(entries, entry)
		if affectsPool(event) {
			touched[event.Market()] = struct{}{}
		}
	}

	lastSeq := batch[len(batch)-1].Seq
	if err := r.retry.do(ctx, func(ctx context.Context) error {
		return r.storage.PutEntries(ctx, entries)
	}); err != nil {
		return 0, 0, fmt.Errorf("store entries: %w", err)
	}
	if err := r.retry.do(ctx, func(ctx context.Context) error {
		return r.storage.PutErrors(ctx, rejected)
	}); err != nil {
		return 0, 0, fmt.Errorf("store errors: %w", err)
	}
	if err := r.syncPools(ctx, touched, lastSeq); err != nil {
		return 0, 0, err
	}

	snap, err := r.engine.Export(lastSeq)
	if err != nil {
		return 0, 0, err
	}
	if err := r.snapshots.Save(snap); err != nil {
		return 0, 0, err
	}
	if err := r.checkpoint.Save(lastSeq, snap.StateHash); err != nil {
		return 0, 0, err
	}

	return len(entries), len(rejected), nil
}

func (r *Runner) syncPools(ctx context.Context, touched map[uint64]struct{}, lastSeq uint64) error {
	if r.pools == nil || len(touched) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(touched))
	for marketID := range touched {
		ids = append(ids, marketID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var upserts []model.PoolRecord
	var deletes []uint64
	for _, marketID := range ids {
		p, err := r.engine.Pool(marketID)
		if err != nil {
			deletes = append(deletes, marketID)
			continue
		}
		record, err := buildPoolRecord(p, lastSeq)
		if err != nil {
			return err
		}
		upserts = append(upserts, record)
	}

	if err := r.retry.do(ctx, func(ctx context.Context) error {
		return r.pools.UpsertPools(ctx, upserts)
	}); err != nil {
		return fmt.Errorf("upsert pools: %w", err)
	}
	if err := r.retry.do(ctx, func(ctx context.Context) error {
		return r.pools.DeletePools(ctx, deletes)
	}); err != nil {
		return fmt.Errorf("delete pools: %w", err)
	}
	return nil
}

func affectsPool(event engine.Event) bool {
	switch event.(type) {
	case engine.PoolDeployed, engine.PoolDestroyed, engine.BuyExecuted, engine.SellExecuted,
		engine.JoinExecuted, engine.ExitExecuted, engine.FeesWithdrawn:
		return true
	default:
		return false
	}
}

// ReadCommands loads the commands with after < seq <= to (to == 0 means no upper
// bound). Sequence numbers must be strictly increasing.
func ReadCommands(path string, after, to uint64) ([]model.CommandRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var records []model.CommandRecord
	var prev uint64
	var lineNo int
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record model.CommandRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("line %d: decode command: %w", lineNo, err)
		}
		if record.Seq == 0 {
			return nil, fmt.Errorf("line %d: seq must be positive", lineNo)
		}
		if record.Seq <= prev {
			return nil, fmt.Errorf("line %d: seq %d does not follow %d", lineNo, record.Seq, prev)
		}
		prev = record.Seq

		if record.Seq <= after {
			continue
		}
		if to > 0 && record.Seq > to {
			break
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return records, nil
}
