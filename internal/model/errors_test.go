package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("buy: %w", fmt.Errorf("curve: %w", ErrMinAmountNotMet))

	if !errors.Is(wrapped, ErrMinAmountNotMet) {
		t.Fatalf("wrapped error should match its sentinel")
	}
	if !IsNumericalLimit(wrapped) {
		t.Fatalf("MinAmountNotMet should be a numerical limit error")
	}
	if got := NameOf(wrapped); got != "MinAmountNotMet" {
		t.Fatalf("unexpected name %q", got)
	}

	cases := map[*Error]ErrorClass{
		ErrDuplicatePool:   ClassValidation,
		ErrSpotPriceTooLow: ClassNumericalLimit,
		ErrTreeIsFull:      ClassThreshold,
		ErrMath:            ClassFatal,
	}
	for sentinel, want := range cases {
		if got := ClassOf(sentinel); got != want {
			t.Fatalf("%s: class %s, want %s", sentinel.Name, got, want)
		}
	}

	if ClassOf(errors.New("plain")) != ClassUnknown {
		t.Fatalf("plain errors are unclassified")
	}
	if IsNumericalLimit(ErrLiquidityTooLow) {
		t.Fatalf("LiquidityTooLow is not a numerical limit error")
	}
}

func TestAssetText(t *testing.T) {
	for _, asset := range []Asset{Collateral(0), Outcome(42, 3)} {
		parsed, err := ParseAsset(asset.String())
		if err != nil {
			t.Fatalf("parse %s: %v", asset, err)
		}
		if parsed != asset {
			t.Fatalf("parse mismatch: %v != %v", parsed, asset)
		}
	}

	if _, err := ParseAsset("outcome:1"); err == nil {
		t.Fatalf("expected error for malformed asset")
	}

	data, err := json.Marshal(map[Asset]string{Outcome(1, 0): "a"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"outcome:1:0":"a"}` {
		t.Fatalf("unexpected json %s", data)
	}
}

func TestSortAssets(t *testing.T) {
	assets := []Asset{Outcome(2, 1), Outcome(2, 0), Collateral(5), Outcome(1, 9)}
	SortAssets(assets)
	want := []Asset{Collateral(5), Outcome(1, 9), Outcome(2, 0), Outcome(2, 1)}
	for i := range want {
		if assets[i] != want[i] {
			t.Fatalf("position %d: %v != %v", i, assets[i], want[i])
		}
	}
}
