package model

import "errors"

// ErrorClass groups errors by how a caller should react to them.
type ErrorClass uint8

const (
	ClassUnknown ErrorClass = iota
	// ClassValidation errors are caller mistakes; nothing was changed.
	ClassValidation
	// ClassNumericalLimit errors mean the pricing curve cannot serve the trade with the
	// given parameters; a router may fall back to another venue.
	ClassNumericalLimit
	// ClassThreshold errors protect pool health.
	ClassThreshold
	// ClassFatal errors should be unreachable and indicate a logic bug.
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNumericalLimit:
		return "numerical_limit"
	case ClassThreshold:
		return "threshold"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel error. Compare with errors.Is.
type Error struct {
	Name  string
	Class ErrorClass
	msg   string
}

func newError(name string, class ErrorClass, msg string) *Error {
	return &Error{Name: name, Class: class, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

var (
	ErrIncorrectVecLen     = newError("IncorrectVecLen", ClassValidation, "incorrect vector length")
	ErrIncorrectAssetCount = newError("IncorrectAssetCount", ClassValidation, "incorrect asset count")
	ErrInvalidSpotPrices   = newError("InvalidSpotPrices", ClassValidation, "spot prices do not sum to one")
	ErrSpotPriceAboveMax   = newError("SpotPriceAboveMax", ClassValidation, "spot price above max")
	ErrSpotPriceBelowMin   = newError("SpotPriceBelowMin", ClassValidation, "spot price below min")
	ErrSwapFeeAboveMax     = newError("SwapFeeAboveMax", ClassValidation, "swap fee above max")
	ErrSwapFeeBelowMin     = newError("SwapFeeBelowMin", ClassValidation, "swap fee below min")
	ErrAmountInAboveMax    = newError("AmountInAboveMax", ClassValidation, "amount in above max")
	ErrAmountOutBelowMin   = newError("AmountOutBelowMin", ClassValidation, "amount out below min")
	ErrZeroAmount          = newError("ZeroAmount", ClassValidation, "zero amount")
	ErrAssetNotFound       = newError("AssetNotFound", ClassValidation, "asset not found")
	ErrPoolNotFound        = newError("PoolNotFound", ClassValidation, "pool not found")
	ErrDuplicatePool       = newError("DuplicatePool", ClassValidation, "pool already exists")
	ErrMarketNotActive     = newError("MarketNotActive", ClassValidation, "market not active")
	ErrMarketNotFound      = newError("MarketNotFound", ClassValidation, "market not found")
	ErrDuplicateMarket     = newError("DuplicateMarket", ClassValidation, "market already exists")
	ErrAccountNotFound     = newError("AccountNotFound", ClassValidation, "account not found")
	ErrInsufficientStake   = newError("InsufficientStake", ClassValidation, "insufficient stake")
	ErrInsufficientBalance = newError("InsufficientBalance", ClassValidation, "insufficient balance")

	ErrSpotPriceTooLow        = newError("SpotPriceTooLow", ClassNumericalLimit, "spot price too low")
	ErrSpotPriceSlippedTooLow = newError("SpotPriceSlippedTooLow", ClassNumericalLimit, "spot price slipped too low")
	ErrMaxAmountExceeded      = newError("MaxAmountExceeded", ClassNumericalLimit, "max amount exceeded")
	ErrMinAmountNotMet        = newError("MinAmountNotMet", ClassNumericalLimit, "min amount not met")

	ErrLiquidityTooLow                       = newError("LiquidityTooLow", ClassThreshold, "liquidity too low")
	ErrMinRelativeLiquidityThresholdViolated = newError("MinRelativeLiquidityThresholdViolated", ClassThreshold, "min relative liquidity threshold violated")
	ErrTreeIsFull                            = newError("TreeIsFull", ClassThreshold, "liquidity tree is full")
	ErrOutstandingFees                       = newError("OutstandingFees", ClassThreshold, "outstanding fees must be withdrawn first")

	ErrUnexpected          = newError("Unexpected", ClassFatal, "unexpected error")
	ErrMath                = newError("MathError", ClassFatal, "math error")
	ErrNarrowingConversion = newError("NarrowingConversion", ClassFatal, "narrowing conversion")
)

// ClassOf returns the class of the first classified error in err's chain.
func ClassOf(err error) ErrorClass {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassUnknown
}

// NameOf returns the sentinel name of err, or "" for unclassified errors.
func NameOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Name
	}
	return ""
}

// IsNumericalLimit reports whether err is a soft numerical-limit failure.
func IsNumericalLimit(err error) bool {
	return ClassOf(err) == ClassNumericalLimit
}
