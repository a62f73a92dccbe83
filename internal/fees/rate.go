// Package fees implements funding- and borrow-rate derivation, the
// delta-neutrality fee, aggregate funding capping, and per-position fee
// settlement (§4.E).
package fees

import (
	"time"

	"perpvenue/internal/numeric"
)

// NsPerYear is the number of nanoseconds in a 365-day year, the time base
// funding and borrow payments are annualised against (§4.E).
const NsPerYear = int64(365 * 24 * time.Hour)

// Rates is the pair of annualised funding rates for both sides of the
// market, as produced by DeriveFundingRates.
type Rates struct {
	Long          numeric.Dec
	Short         numeric.Dec
	PopularIsLong bool
}

// Popular returns the rate paid by whichever side is currently popular.
func (r Rates) Popular() numeric.Dec {
	if r.PopularIsLong {
		return r.Long
	}
	return r.Short
}

// DeriveFundingRates computes the annualised funding rate paid by the
// popular side and received by the unpopular side (§4.E). On a perfectly
// one-sided market (one side has zero open interest) both rates are
// exactly zero — nobody to pay. A balanced market (long == short) has no
// check of its own: its net interest is zero, so the general formula gives
// zero for both rates.
func DeriveFundingRates(longInterest, shortInterest, sensitivity, rfCap, dnfSensitivity, dnfCap numeric.Dec) (Rates, error) {
	totalInterest, err := longInterest.Add(shortInterest)
	if err != nil {
		return Rates{}, err
	}
	if totalInterest.IsZero() {
		return Rates{Long: numeric.Zero(), Short: numeric.Zero()}, nil
	}
	if longInterest.IsZero() || shortInterest.IsZero() {
		// One side is entirely empty: the non-empty side has nobody on
		// the other side to pay it, so both rates are zero.
		return Rates{Long: numeric.Zero(), Short: numeric.Zero()}, nil
	}

	netInterest := longInterest.SaturatingSub(shortInterest)
	if shortInterest.GreaterThan(longInterest) {
		netInterest = shortInterest.SaturatingSub(longInterest)
	}

	dnfDenominator, err := dnfSensitivity.Mul(dnfCap)
	if err != nil {
		return Rates{}, err
	}
	var capSensitivity numeric.Dec
	if dnfDenominator.IsZero() {
		capSensitivity = sensitivity
	} else {
		derived, err := rfCap.Mul(totalInterest)
		if err != nil {
			return Rates{}, err
		}
		derived, err = derived.Div(dnfDenominator)
		if err != nil {
			return Rates{}, err
		}
		capSensitivity = sensitivity.Max(derived)
	}

	ratio, err := netInterest.Div(totalInterest)
	if err != nil {
		return Rates{}, err
	}
	popularRate, err := capSensitivity.Mul(ratio)
	if err != nil {
		return Rates{}, err
	}
	popularRate = popularRate.Min(rfCap)

	var popular, unpopular numeric.Dec
	long := longInterest.GreaterThanOrEqual(shortInterest)
	if long {
		popular, unpopular = longInterest, shortInterest
	} else {
		popular, unpopular = shortInterest, longInterest
	}
	unpopularRate, err := popularRate.Mul(popular)
	if err != nil {
		return Rates{}, err
	}
	unpopularRate, err = unpopularRate.Div(unpopular)
	if err != nil {
		return Rates{}, err
	}

	if long {
		return Rates{Long: popularRate, Short: unpopularRate, PopularIsLong: true}, nil
	}
	return Rates{Long: unpopularRate, Short: popularRate, PopularIsLong: false}, nil
}
