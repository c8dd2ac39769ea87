package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"neoswaps/internal/config"
	"neoswaps/internal/engine"
	"neoswaps/internal/fees"
	"neoswaps/internal/ledger"
	"neoswaps/internal/market"
	"neoswaps/internal/runner"
	"neoswaps/internal/storage"
	"neoswaps/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "neoswaps",
		Short:        "Neo-swaps prediction market pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a command stream through the pool engine",
		RunE:  runEngine,
	}

	runCmd.Flags().String("in", "", "input commands JSONL")
	runCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	runCmd.Flags().String("errors", "./data/command_errors.jsonl", "rejected commands JSONL")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().String("state-file", "./data/state.json", "engine state snapshot path")
	runCmd.Flags().Uint64("to-seq", 0, "last command seq to apply (inclusive), 0 means all")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for pools and events")
	runCmd.Flags().Int("batch-size", 500, "commands per batch")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts for storage writes")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("max-swap-fee", "0.1", "maximum pool swap fee")
	runCmd.Flags().Uint32("tree-depth", 9, "liquidity tree depth")
	runCmd.Flags().String("external-fee-rate", "0", "external fee rate charged on trades")
	runCmd.Flags().String("treasury", "", "external fee recipient")
	runCmd.Flags().String("exit-fee-sink", "0x0000000000000000000000000000000000000000", "recipient of pool dust when a pool is destroyed")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate journaled events into market window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("in", "./data/events.jsonl", "input events JSONL")
	aggregateCmd.Flags().String("window", "1h", "aggregation window (e.g. 5m, 1h, 24h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print pools and spot prices from a state snapshot",
		RunE:  runInspect,
	}

	inspectCmd.Flags().String("state-file", "./data/state.json", "engine state snapshot path")
	inspectCmd.Flags().StringSlice("market", nil, "market ids to print (comma-separated), empty means all")
	inspectCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(inspectCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runEngine(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := newEngine(cfg.Engine, logger)
	if err != nil {
		return err
	}

	var (
		sink  storage.Storage = storage.NewJsonlStorage(cfg.Out, cfg.Errors)
		pools runner.PoolStore
	)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sink = storage.Multi{sink, store}
		pools = store
	}

	r := runner.NewRunner(runner.RunConfig{
		Input:             cfg.Input,
		ToSeq:             cfg.ToSeq,
		BatchSize:         uint64(cfg.BatchSize),
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		StatePath:         cfg.StateFile,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, eng, sink, pools, logger)

	logger.Info("run start",
		zap.String("in", cfg.Input),
		zap.Uint64("to_seq", cfg.ToSeq),
		zap.Int("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
		zap.String("state_file", cfg.StateFile),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	summary, err := r.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("run complete",
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Uint64("last_seq", summary.LastSeq),
	)
	return nil
}

func newEngine(cfg config.EngineConfig, logger *zap.Logger) (*engine.Engine, error) {
	l := ledger.New()
	markets := market.NewRegistry()

	var external engine.ExternalFees
	if !cfg.ExternalFeeRate.IsZero() {
		p, err := fees.NewPercentage(cfg.ExternalFeeRate, cfg.Treasury, l)
		if err != nil {
			return nil, err
		}
		external = p
	}

	return engine.New(engine.Config{
		MaxSwapFee:   cfg.MaxSwapFee,
		MaxTreeDepth: cfg.MaxTreeDepth,
		ExitFeeSink:  cfg.ExitFeeSink,
	}, l, markets, nil, external, logger), nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
