package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neoswaps/internal/config"
	"neoswaps/internal/engine"
	"neoswaps/internal/fixed"
	"neoswaps/internal/ledger"
	"neoswaps/internal/market"
	"neoswaps/internal/pool"
	"neoswaps/internal/runner"
)

type poolView struct {
	MarketID           uint64      `json:"market_id"`
	AccountID          string      `json:"account_id"`
	Collateral         string      `json:"collateral"`
	LiquidityParameter string      `json:"liquidity_parameter"`
	SwapFee            string      `json:"swap_fee"`
	TotalShares        string      `json:"total_shares"`
	Providers          int         `json:"providers"`
	Assets             []assetView `json:"assets"`
}

type assetView struct {
	Asset     string `json:"asset"`
	Reserve   string `json:"reserve"`
	SpotPrice string `json:"spot_price"`
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	snap, ok, err := runner.NewSnapshotStore(cfg.StateFile).Load()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("state file %s not found", cfg.StateFile)
	}

	eng := engine.New(engine.Config{}, ledger.New(), market.NewRegistry(), nil, nil, logger)
	if err := eng.Import(snap); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	logger.Debug("state loaded", zap.Uint64("last_seq", snap.LastSeq), zap.Int("pools", len(snap.Pools)))

	return printPools(cmd.OutOrStdout(), eng.Pools(), cfg.Markets)
}

func printPools(w io.Writer, pools []*pool.Pool, markets []uint64) error {
	wanted := make(map[uint64]bool, len(markets))
	for _, id := range markets {
		wanted[id] = true
	}

	enc := json.NewEncoder(w)
	for _, p := range pools {
		if len(wanted) > 0 && !wanted[p.MarketID] {
			continue
		}
		view, err := describePool(p)
		if err != nil {
			return err
		}
		if err := enc.Encode(view); err != nil {
			return err
		}
	}
	return nil
}

func describePool(p *pool.Pool) (poolView, error) {
	view := poolView{
		MarketID:           p.MarketID,
		AccountID:          p.AccountID.Hex(),
		Collateral:         p.Collateral.String(),
		LiquidityParameter: fixed.Format(p.LiquidityParameter),
		SwapFee:            fixed.Format(p.SwapFee),
		TotalShares:        fixed.Format(p.Tree.TotalShares()),
		Providers:          len(p.Tree.Accounts()),
	}
	for _, asset := range p.Assets() {
		reserve, err := p.Reserve(asset)
		if err != nil {
			return poolView{}, err
		}
		price, err := p.SpotPrice(asset)
		if err != nil {
			return poolView{}, fmt.Errorf("spot price of %s: %w", asset, err)
		}
		view.Assets = append(view.Assets, assetView{
			Asset:     asset.String(),
			Reserve:   fixed.Format(reserve),
			SpotPrice: fixed.Format(price),
		})
	}
	return view, nil
}
