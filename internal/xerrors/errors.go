// Package xerrors defines the engine's error taxonomy: a closed set of kinds
// that every component returns instead of ad-hoc errors.New calls, so the
// transport boundary can translate any failure into a stable wire shape
// without inspecting error strings.
package xerrors

import "fmt"

// Kind identifies a class of engine error. Kinds are stable across releases;
// new kinds may be added but existing ones are never renumbered.
type Kind int

const (
	// KindAuth signals the caller is not the position/config owner.
	KindAuth Kind = iota
	// KindMarketClosed signals the market has been administratively halted.
	KindMarketClosed
	// KindStale signals a price point or liquifunding has fallen behind staleness_seconds.
	KindStale
	// KindInsufficientMargin signals a position lacks the margin a requested action needs.
	KindInsufficientMargin
	// KindInsufficientLiquidity signals the pool cannot honour a withdrawal or lock request.
	KindInsufficientLiquidity
	// KindInsufficientCollateral signals a wallet or pool balance is too small for the request.
	KindInsufficientCollateral
	// KindInsufficientShares signals a withdrawal exceeds the caller's LP/vault shares.
	KindInsufficientShares
	// KindSlippageExceeded signals SlippageAssert failed against the resolved price.
	KindSlippageExceeded
	// KindDeltaNeutralityAlreadyLong signals a rejected size increase on an already-capped long book.
	KindDeltaNeutralityAlreadyLong
	// KindDeltaNeutralityAlreadyShort mirrors KindDeltaNeutralityAlreadyLong for shorts.
	KindDeltaNeutralityAlreadyShort
	// KindDeltaNeutralityNewlyLong signals an update that would newly breach the long-side cap.
	KindDeltaNeutralityNewlyLong
	// KindDeltaNeutralityNewlyShort mirrors KindDeltaNeutralityNewlyLong for shorts.
	KindDeltaNeutralityNewlyShort
	// KindDeltaNeutralityLongToShort signals a flip through a capped short side.
	KindDeltaNeutralityLongToShort
	// KindDeltaNeutralityShortToLong mirrors KindDeltaNeutralityLongToShort for the opposite flip.
	KindDeltaNeutralityShortToLong
	// KindLeverageOutOfRange signals a requested leverage outside [0, max_leverage].
	KindLeverageOutOfRange
	// KindMaxGainsTooLarge signals a max-gains configuration above the protocol ceiling.
	KindMaxGainsTooLarge
	// KindMaxGainsInfiniteDisallowed signals an infinite max-gains request where the market forbids it.
	KindMaxGainsInfiniteDisallowed
	// KindMaxGainsShortDisallowed signals an infinite max-gains request on a short, which is never finite.
	KindMaxGainsShortDisallowed
	// KindArithmeticOverflow wraps numeric.ErrOverflow at the engine boundary.
	KindArithmeticOverflow
	// KindArithmeticUnderflow wraps numeric.ErrUnderflow at the engine boundary.
	KindArithmeticUnderflow
	// KindArithmeticDivByZero wraps numeric.ErrDivByZero at the engine boundary.
	KindArithmeticDivByZero
	// KindNotFoundPosition signals a lookup by position id found nothing.
	KindNotFoundPosition
	// KindNotFoundOrder signals a lookup by limit-order id found nothing.
	KindNotFoundOrder
	// KindNotFoundDeferred signals a lookup by deferred-exec id found nothing.
	KindNotFoundDeferred
	// KindNotFoundMarket signals a reference to an unknown market.
	KindNotFoundMarket
	// KindCooldownActive signals a pool action blocked by an active liquidity cooldown.
	KindCooldownActive
	// KindIterationLimitReached signals smart_search or a similar bounded loop failed to converge.
	KindIterationLimitReached
	// KindMinimumDeposit signals a deposit below minimum_deposit_usd.
	KindMinimumDeposit
	// KindCongested signals the deferred-exec queue is full.
	KindCongested
)

var kindNames = map[Kind]string{
	KindAuth:                        "auth",
	KindMarketClosed:                "market_closed",
	KindStale:                       "stale",
	KindInsufficientMargin:          "insufficient_margin",
	KindInsufficientLiquidity:       "insufficient_liquidity",
	KindInsufficientCollateral:      "insufficient_collateral",
	KindInsufficientShares:          "insufficient_shares",
	KindSlippageExceeded:            "slippage_exceeded",
	KindDeltaNeutralityAlreadyLong:  "delta_neutrality_already_long",
	KindDeltaNeutralityAlreadyShort: "delta_neutrality_already_short",
	KindDeltaNeutralityNewlyLong:    "delta_neutrality_newly_long",
	KindDeltaNeutralityNewlyShort:   "delta_neutrality_newly_short",
	KindDeltaNeutralityLongToShort:  "delta_neutrality_long_to_short",
	KindDeltaNeutralityShortToLong:  "delta_neutrality_short_to_long",
	KindLeverageOutOfRange:          "leverage_out_of_range",
	KindMaxGainsTooLarge:            "max_gains_too_large",
	KindMaxGainsInfiniteDisallowed:  "max_gains_infinite_disallowed",
	KindMaxGainsShortDisallowed:     "max_gains_short_disallowed",
	KindArithmeticOverflow:          "arithmetic_overflow",
	KindArithmeticUnderflow:         "arithmetic_underflow",
	KindArithmeticDivByZero:         "arithmetic_div_by_zero",
	KindNotFoundPosition:            "not_found_position",
	KindNotFoundOrder:               "not_found_order",
	KindNotFoundDeferred:            "not_found_deferred",
	KindNotFoundMarket:              "not_found_market",
	KindCooldownActive:              "cooldown_active",
	KindIterationLimitReached:       "iteration_limit_reached",
	KindMinimumDeposit:              "minimum_deposit",
	KindCongested:                   "congested",
}

// String renders the kind's wire identifier.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Error is the engine's single error type: a Kind plus a human-readable
// description and optional structured data, matching the {id, description,
// data} wire shape the host boundary emits.
type Error struct {
	Kind        Kind
	Description string
	Data        map[string]any
	cause       error
}

// New builds an Error of the given kind.
func New(kind Kind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}

// Newf builds an Error of the given kind with a formatted description.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Description: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and description to an underlying cause, preserving it
// for errors.Is/errors.As and %w-style unwrapping.
func Wrap(kind Kind, cause error, description string) *Error {
	return &Error{Kind: kind, Description: description, cause: cause}
}

// WithData attaches structured payload fields and returns the receiver for chaining.
func (e *Error) WithData(key string, value any) *Error {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Description, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, xerrors.New(xerrors.KindStale, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WireError is the shape the host transport boundary serialises an Error
// into for wire transmission (§7: "the outermost host boundary converts
// them into {id, description, data}").
type WireError struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}

// ToWire converts an Error to its wire representation.
func (e *Error) ToWire() WireError {
	return WireError{ID: e.Kind.String(), Description: e.Description, Data: e.Data}
}

// ToWire converts any error to a WireError, falling back to an "internal"
// kind for errors that never went through this package.
func ToWire(err error) WireError {
	if err == nil {
		return WireError{}
	}
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
	} else {
		return WireError{ID: "internal", Description: err.Error()}
	}
	return e.ToWire()
}
