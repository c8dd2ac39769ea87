package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"neoswaps/internal/engine"
	"neoswaps/internal/fixed"
	"neoswaps/internal/model"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

func parseAmount(field, input string) (*uint256.Int, error) {
	v, err := fixed.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

// parseOptionalAmount treats an empty string as no bound.
func parseOptionalAmount(field, input string) (*uint256.Int, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	return parseAmount(field, input)
}

func parseAmounts(field string, inputs []string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, 0, len(inputs))
	for i, input := range inputs {
		v, err := parseAmount(fmt.Sprintf("%s[%d]", field, i), input)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ParseCommand turns a command stream record into a typed engine command.
func ParseCommand(record model.CommandRecord) (engine.Command, error) {
	switch record.Op {
	case model.OpCreateMarket:
		var args model.CreateMarketArgs
		if err := decodeArgs(record, &args); err != nil {
			return nil, err
		}
		creator, err := ParseAddress(args.Creator)
		if err != nil {
			return nil, fmt.Errorf("creator: %w", err)
		}
		collateral, err := model.ParseAsset(args.Collateral)
		if err != nil {
			return nil, fmt.Errorf("collateral: %w", err)
		}
		return engine.CreateMarket{MarketID: args.MarketID, Creator: creator, Collateral: collateral, Outcomes: args.Outcomes}, nil

	case model.OpResolveMarket:
		var args model.ResolveMarketArgs
		if err := decodeArgs(record, &args); err != nil {
			return nil, err
		}
		return engine.ResolveMarket{MarketID: args.MarketID, Outcome: args.Outcome}, nil

	case model.OpFund:
		var args model.FundArgs
		if err := decodeArgs(record, &args); err != nil {
			return nil, err
		}
		who, err := ParseAddress(args.Who)
		if err != nil {
			return nil, fmt.Errorf("who: %w", err)
		}
		asset, err := model.ParseAsset(args.Asset)
		if err != nil {
			return nil, fmt.Errorf("asset: %w", err)
		}
		amount, err := parseAmount("amount", args.Amount)
		if err != nil {
			return nil, err
		}
		return engine.Fund{Who: who, Asset: asset, Amount: amount}, nil

	case model.OpBuyCompleteSet, model.OpSellCompleteSet:
		var args model.CompleteSetArgs
		if err := decodeArgs(record, &args); err != nil {
			return nil, err
		}
		who, err := ParseAddress(args.Who)
		if err != nil {
			return nil, fmt.Errorf("who: %w", err)
		}
		amount, err := parseAmount("amount", args.Amount)
		if err != nil {
			return nil, err
		}
		if record.Op == model.OpBuyCompleteSet {
			return engine.BuyCompleteSet{Who: who, MarketID: args.MarketID, Amount: amount}, nil
		}
		return engine.SellCompleteSet{Who: who, MarketID: args.MarketID, Amount: amount}, nil

	case model.OpDeployPool:
		var args model.DeployPoolArgs
		if err := decodeArgs(record, &args); err != nil {
			return nil, err
		}
		who, err := ParseAddress(args.Who)
		if err != nil {
			return nil, fmt.Errorf("who: %w", err)
		}
		amount, err := parseAmount("amount", args.Amount)
		if err != nil {
			return nil, err
		}
		prices, err := parseAmounts("spot_prices", args.SpotPrices)
		if err != nil {
			return nil, err
		}
		swapFee, err := parseAmount("swap_fee", args.SwapFee)
		if err != nil {
			return nil, err
		}
		return engine.DeployPool{Who: who, MarketID: args.MarketID, Amount: amount, SpotPrices: prices, SwapFee: swapFee}, nil

	case model.OpBuy, model.OpSell:
		var args model.TradeArgs
		if err := decodeArgs(record, &args); err != nil {
			return nil, err
		}
		who, err := ParseAddress(args.Who)
		if err != nil {
			return nil, fmt.Errorf("who: %w", err)
		}
		asset, err := model.ParseAsset(args.Asset)
		if err != nil {
			return nil, fmt.Errorf("asset: %w", err)
		}
		amountIn, err := parseAmount("amount_in", args.AmountIn)
		if err != nil {
			return nil, err
		}
		minOut, err := parseOptionalAmount("min_amount_out", args.MinAmountOut)
		if err != nil {
			return nil, err
		}
		if record.Op == model.OpBuy {
			return engine.Buy{Who: who, MarketID: args.MarketID, AssetCount: args.AssetCount, AssetOut: asset, AmountIn: amountIn, MinAmountOut: minOut}, nil
		}
		return engine.Sell{Who: who, MarketID: args.MarketID, AssetCount: args.AssetCount, AssetIn: asset, AmountIn: amountIn, MinAmountOut: minOut}, nil

	case model.OpJoin, model.OpExit:
		var args model.LiquidityArgs
		if err := decodeArgs(record, &args); err != nil {
			return nil, err
		}
		who, err := ParseAddress(args.Who)
		if err != nil {
			return nil, fmt.Errorf("who: %w", err)
		}
		shares, err := parseAmount("pool_shares_amount", args.PoolSharesAmount)
		if err != nil {
			return nil, err
		}
		amounts, err := parseAmounts("amounts", args.Amounts)
		if err != nil {
			return nil, err
		}
		if record.Op == model.OpJoin {
			return engine.Join{Who: who, MarketID: args.MarketID, PoolSharesAmount: shares, MaxAmountsIn: amounts}, nil
		}
		return engine.Exit{Who: who, MarketID: args.MarketID, PoolSharesAmount: shares, MinAmountsOut: amounts}, nil

	case model.OpWithdrawFees:
		var args model.WithdrawFeesArgs
		if err := decodeArgs(record, &args); err != nil {
			return nil, err
		}
		who, err := ParseAddress(args.Who)
		if err != nil {
			return nil, fmt.Errorf("who: %w", err)
		}
		return engine.WithdrawFees{Who: who, MarketID: args.MarketID}, nil

	default:
		return nil, fmt.Errorf("unknown op %q", record.Op)
	}
}

func decodeArgs(record model.CommandRecord, out interface{}) error {
	if len(record.Args) == 0 {
		return fmt.Errorf("%s: missing args", record.Op)
	}
	if err := json.Unmarshal(record.Args, out); err != nil {
		return fmt.Errorf("%s args: %w", record.Op, err)
	}
	return nil
}
