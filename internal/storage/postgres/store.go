package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"neoswaps/internal/model"
)

//go:embed schema.sql
var schema string

// Store provides Postgres persistence for pools, the event journal and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates the current state of pools.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		reserves, err := json.Marshal(p.Reserves)
		if err != nil {
			return fmt.Errorf("marshal reserves of pool %d: %w", p.MarketID, err)
		}
		batch.Queue(`
			INSERT INTO pools (
				market_id, account_id, collateral, liquidity_parameter, swap_fee, total_shares,
				providers, reserves, encoded, last_seq, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
			ON CONFLICT (market_id)
			DO UPDATE SET
				account_id = EXCLUDED.account_id,
				collateral = EXCLUDED.collateral,
				liquidity_parameter = EXCLUDED.liquidity_parameter,
				swap_fee = EXCLUDED.swap_fee,
				total_shares = EXCLUDED.total_shares,
				providers = EXCLUDED.providers,
				reserves = EXCLUDED.reserves,
				encoded = EXCLUDED.encoded,
				last_seq = GREATEST(pools.last_seq, EXCLUDED.last_seq),
				updated_at = now()
		`,
			int64(p.MarketID),
			p.AccountID,
			p.Collateral,
			p.LiquidityParameter,
			p.SwapFee,
			p.TotalShares,
			p.Providers,
			reserves,
			[]byte(p.Encoded),
			int64(p.LastSeq),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// DeletePools removes destroyed pools.
func (s *Store) DeletePools(ctx context.Context, marketIDs []uint64) error {
	if len(marketIDs) == 0 {
		return nil
	}
	ids := make([]int64, len(marketIDs))
	for i, id := range marketIDs {
		ids[i] = int64(id)
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM pools WHERE market_id = ANY($1)`, ids)
	return err
}

// PutEntries appends journal entries. Replayed entries are ignored.
func (s *Store) PutEntries(ctx context.Context, entries []model.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload of seq %d: %w", e.Seq, err)
		}
		var meta []byte
		if e.PoolMeta != nil {
			if meta, err = json.Marshal(e.PoolMeta); err != nil {
				return fmt.Errorf("marshal pool meta of seq %d: %w", e.Seq, err)
			}
		}
		batch.Queue(`
			INSERT INTO pool_events (seq, op, ts, event_name, market_id, payload, pool_meta, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(e.Seq),
			e.Op,
			int64(e.Timestamp),
			e.EventName,
			int64(e.MarketID),
			payload,
			meta,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutErrors records rejected commands.
func (s *Store) PutErrors(ctx context.Context, errs []model.CommandError) error {
	if len(errs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range errs {
		batch.Queue(`
			INSERT INTO command_errors (seq, op, ts, error, name, class, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (seq) DO NOTHING
		`,
			int64(e.Seq),
			e.Op,
			int64(e.Timestamp),
			e.Error,
			e.Name,
			e.Class,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range errs {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.MarketWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO market_window_metrics (
				market_id, window_size_seconds, window_start_ts, window_end_ts,
				buy_count, sell_count, join_count, exit_count, volume, swap_fees, external_fees,
				fees_withdrawn, liquidity_parameter, total_shares, fee_rate, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			ON CONFLICT (market_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				buy_count = EXCLUDED.buy_count,
				sell_count = EXCLUDED.sell_count,
				join_count = EXCLUDED.join_count,
				exit_count = EXCLUDED.exit_count,
				volume = EXCLUDED.volume,
				swap_fees = EXCLUDED.swap_fees,
				external_fees = EXCLUDED.external_fees,
				fees_withdrawn = EXCLUDED.fees_withdrawn,
				liquidity_parameter = EXCLUDED.liquidity_parameter,
				total_shares = EXCLUDED.total_shares,
				fee_rate = EXCLUDED.fee_rate,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			int64(m.MarketID),
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.BuyCount),
			int64(m.SellCount),
			int64(m.JoinCount),
			int64(m.ExitCount),
			m.Volume,
			m.SwapFees,
			m.ExternalFees,
			m.FeesWithdrawn,
			m.LiquidityParameter,
			m.TotalShares,
			m.FeeRate,
			m.APR,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the progress marker stored under name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var v int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed FROM runner_state WHERE name=$1`, name)
	if err := row.Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(v), true, nil
}

// SaveState upserts the progress marker stored under name.
func (s *Store) SaveState(ctx context.Context, name string, value uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runner_state (name, last_processed, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed = EXCLUDED.last_processed, updated_at = now()
	`, name, int64(value))
	return err
}
