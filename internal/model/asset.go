package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AssetKind distinguishes collateral from outcome tokens.
type AssetKind uint8

const (
	KindCollateral AssetKind = iota
	KindOutcome
)

// Asset identifies a fungible token held on the ledger.
type Asset struct {
	Kind    AssetKind
	ID      uint64 // collateral id, or market id for outcomes
	Outcome uint16
}

// Collateral returns the collateral asset with the given id.
func Collateral(id uint64) Asset {
	return Asset{Kind: KindCollateral, ID: id}
}

// Outcome returns the categorical outcome token of a market.
func Outcome(marketID uint64, index uint16) Asset {
	return Asset{Kind: KindOutcome, ID: marketID, Outcome: index}
}

// IsOutcome reports whether the asset is an outcome token.
func (a Asset) IsOutcome() bool {
	return a.Kind == KindOutcome
}

// Less orders assets by kind, id and outcome index.
func (a Asset) Less(b Asset) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Outcome < b.Outcome
}

func (a Asset) String() string {
	if a.Kind == KindOutcome {
		return fmt.Sprintf("outcome:%d:%d", a.ID, a.Outcome)
	}
	return fmt.Sprintf("collateral:%d", a.ID)
}

// MarshalText encodes the asset in its string form, which also makes it usable as a JSON map key.
func (a Asset) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses "collateral:<id>" or "outcome:<market>:<index>".
func (a *Asset) UnmarshalText(text []byte) error {
	parsed, err := ParseAsset(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAsset parses the string form of an asset.
func ParseAsset(input string) (Asset, error) {
	parts := strings.Split(strings.TrimSpace(input), ":")
	switch {
	case len(parts) == 2 && parts[0] == "collateral":
		id, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return Asset{}, fmt.Errorf("invalid collateral id %q: %w", parts[1], err)
		}
		return Collateral(id), nil
	case len(parts) == 3 && parts[0] == "outcome":
		market, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return Asset{}, fmt.Errorf("invalid market id %q: %w", parts[1], err)
		}
		index, err := strconv.ParseUint(parts[2], 10, 16)
		if err != nil {
			return Asset{}, fmt.Errorf("invalid outcome index %q: %w", parts[2], err)
		}
		return Outcome(market, uint16(index)), nil
	default:
		return Asset{}, fmt.Errorf("invalid asset: %s", input)
	}
}

// SortAssets sorts assets in place using Asset.Less.
func SortAssets(assets []Asset) {
	sort.Slice(assets, func(i, j int) bool { return assets[i].Less(assets[j]) })
}
