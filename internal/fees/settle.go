package fees

import (
	"perpvenue/internal/numeric"
)

// FundingPayment computes a position's signed funding payment over an
// interval from the per-direction funding integral delta and the
// position's notional size: Σ(rate·price) · |notional_size| / NS_PER_YEAR,
// with sign taken from the integral (positive = position pays, negative =
// position receives) rather than from position direction directly, since
// the integral itself already carries the pay/receive sign for that
// direction over the interval (§4.E).
func FundingPayment(integral numeric.Signed[numeric.Dec], notional numeric.Signed[numeric.Notional]) (numeric.Signed[numeric.Collateral], error) {
	magnitude, err := integral.Abs().Mul(notional.Abs().Dec())
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	magnitude, err = magnitude.Div(numeric.FromUint64(uint64(NsPerYear)))
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	return numeric.NewSigned(numeric.NewCollateral(magnitude), integral.IsNegative()), nil
}

// BorrowPayment computes the total borrow payment owed by a position over
// an interval, split into the portion destined for the LP pool and the
// portion destined for the xLP pool: (Σlp_rate, Σxlp_rate) · counter_collateral
// / NS_PER_YEAR (§4.E).
func BorrowPayment(lpIntegral, xlpIntegral numeric.Dec, counterCollateral numeric.Collateral) (total, lpPortion, xlpPortion numeric.Collateral, err error) {
	nsPerYear := numeric.FromUint64(uint64(NsPerYear))
	lpAmount, err := lpIntegral.Mul(counterCollateral.Dec())
	if err != nil {
		return numeric.Collateral{}, numeric.Collateral{}, numeric.Collateral{}, err
	}
	lpAmount, err = lpAmount.Div(nsPerYear)
	if err != nil {
		return numeric.Collateral{}, numeric.Collateral{}, numeric.Collateral{}, err
	}
	xlpAmount, err := xlpIntegral.Mul(counterCollateral.Dec())
	if err != nil {
		return numeric.Collateral{}, numeric.Collateral{}, numeric.Collateral{}, err
	}
	xlpAmount, err = xlpAmount.Div(nsPerYear)
	if err != nil {
		return numeric.Collateral{}, numeric.Collateral{}, numeric.Collateral{}, err
	}
	totalDec, err := lpAmount.Add(xlpAmount)
	if err != nil {
		return numeric.Collateral{}, numeric.Collateral{}, numeric.Collateral{}, err
	}
	return numeric.NewCollateral(totalDec), numeric.NewCollateral(lpAmount), numeric.NewCollateral(xlpAmount), nil
}

// CapPayment clamps a payment (only when it is a cost, i.e. positive) to
// the per-position margin reserved for its class, reporting whether the
// cap was hit so the caller can emit InsufficientMarginEvent (§4.E, §7:
// "Per-position fee caps do not raise errors — they clamp and emit
// InsufficientMarginEvent for observability").
func CapPayment(payment numeric.Signed[numeric.Collateral], margin numeric.Collateral) (capped numeric.Signed[numeric.Collateral], hitCap bool) {
	if payment.IsNegativeOrZero() {
		return payment, false
	}
	if payment.Abs().Cmp(margin) > 0 {
		return numeric.Positive(margin), true
	}
	return payment, false
}

// AggregateFundingState is the protocol-wide funding invariant inputs
// (§3: "Funding aggregate").
type AggregateFundingState struct {
	TotalNetFundingPaid numeric.Signed[numeric.Collateral]
	TotalFundingMargin  numeric.Collateral
}

// ApplyAggregateCap clamps amount (a position's signed funding payment) so
// that TOTAL_NET_FUNDING_PAID + amount never drives the residual fund
// below the margin-backed reserve (§4.E: "a protocol-level check ensures
// the sum ... never drives the residual fund below the margin-backed
// reserve; if it would, amount is clamped"). It reports whether clamping
// occurred.
func ApplyAggregateCap(state AggregateFundingState, amount numeric.Signed[numeric.Collateral]) (clamped numeric.Signed[numeric.Collateral], wasClamped bool, err error) {
	projected, err := state.TotalNetFundingPaid.Add(amount)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, false, err
	}
	floorSigned := numeric.Negative(state.TotalFundingMargin)
	if projected.Cmp(floorSigned) >= 0 {
		return amount, false, nil
	}
	// Clamp amount so that total_net_funding_paid + amount == -total_funding_margin.
	clampedAmount, err := floorSigned.Sub(state.TotalNetFundingPaid)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, false, err
	}
	return clampedAmount, true, nil
}
