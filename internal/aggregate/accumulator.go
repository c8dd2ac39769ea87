package aggregate

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"neoswaps/internal/model"
)

// Accumulator holds aggregate values for a market window.
type Accumulator struct {
	MarketID      uint64
	WindowStart   uint64
	WindowEnd     uint64
	BuyCount      uint64
	SellCount     uint64
	JoinCount     uint64
	ExitCount     uint64
	Volume        decimal.Decimal
	SwapFees      decimal.Decimal
	ExternalFees  decimal.Decimal
	FeesWithdrawn decimal.Decimal
	PoolMeta      *model.PoolMeta
	LastSeq       uint64
	LastTS        uint64
}

func NewAccumulator(record model.JournalRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		MarketID:    record.MarketID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		LastSeq:     record.Seq,
		LastTS:      record.Timestamp,
	}
}

// AddEvent folds one journal record into the window. The pool meta of the latest
// record wins; a destroyed pool clears it.
func (a *Accumulator) AddEvent(record model.JournalRecord) error {
	if record.Seq >= a.LastSeq {
		a.LastSeq = record.Seq
		a.LastTS = record.Timestamp
		if record.PoolMeta != nil || record.EventName == model.EventPoolDestroyed {
			a.PoolMeta = record.PoolMeta
		}
	}

	switch record.EventName {
	case model.EventBuyExecuted, model.EventSellExecuted:
		var trade model.TradeEventData
		if err := json.Unmarshal(record.Payload, &trade); err != nil {
			return fmt.Errorf("decode trade: %w", err)
		}
		return a.applyTrade(record.EventName == model.EventBuyExecuted, trade)
	case model.EventJoinExecuted:
		a.JoinCount++
		return nil
	case model.EventExitExecuted, model.EventPoolDestroyed:
		var exit model.LiquidityEventData
		if err := json.Unmarshal(record.Payload, &exit); err != nil {
			return fmt.Errorf("decode exit: %w", err)
		}
		a.ExitCount++
		return a.addWithdrawn(exit.FeesWithdrawn)
	case model.EventFeesWithdrawn:
		var withdrawn model.FeesWithdrawnEventData
		if err := json.Unmarshal(record.Payload, &withdrawn); err != nil {
			return fmt.Errorf("decode fees withdrawn: %w", err)
		}
		return a.addWithdrawn(withdrawn.Amount)
	default:
		return nil
	}
}

// applyTrade counts collateral volume gross of fees: the amount paid in for buys and
// the amount the pool released for sells.
func (a *Accumulator) applyTrade(isBuy bool, trade model.TradeEventData) error {
	swapFee, err := parseDecimal(trade.SwapFeeAmount)
	if err != nil {
		return err
	}
	externalFee, err := parseDecimal(trade.ExternalFeeAmount)
	if err != nil {
		return err
	}

	var volume decimal.Decimal
	if isBuy {
		if volume, err = parseDecimal(trade.AmountIn); err != nil {
			return err
		}
		a.BuyCount++
	} else {
		out, err := parseDecimal(trade.AmountOut)
		if err != nil {
			return err
		}
		volume = out.Add(swapFee).Add(externalFee)
		a.SellCount++
	}

	a.Volume = a.Volume.Add(volume)
	a.SwapFees = a.SwapFees.Add(swapFee)
	a.ExternalFees = a.ExternalFees.Add(externalFee)
	return nil
}

func (a *Accumulator) addWithdrawn(amount string) error {
	v, err := parseDecimal(amount)
	if err != nil {
		return err
	}
	a.FeesWithdrawn = a.FeesWithdrawn.Add(v)
	return nil
}

func parseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return d, nil
}
