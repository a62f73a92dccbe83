package countertrade

import (
	"perpvenue/internal/fees"
	"perpvenue/internal/numeric"
	"perpvenue/internal/xerrors"
)

var (
	halfRatio   = numeric.MustParseDec("0.5")
	two         = numeric.FromUint64(2)
	convergeEps = numeric.MustParseDec("0.00001")
)

// popularRate projects the popular-side funding rate §4.E would derive for
// a market with the given long/short interest.
func popularRate(cfg Config, longInterest, shortInterest numeric.Dec) (numeric.Dec, error) {
	rates, err := fees.DeriveFundingRates(longInterest, shortInterest, cfg.Sensitivity, cfg.RfCap, cfg.DnfSensitivity, cfg.DnfCap)
	if err != nil {
		return numeric.Zero(), err
	}
	if rates.PopularIsLong {
		return rates.Long, nil
	}
	return rates.Short, nil
}

// smartSearch bisects for the unpopular-side notional total that would
// drive the popular-side funding rate to cfg.TargetFunding (§4.I
// "smart_search"). popular and unpopular are the market's own notional
// totals excluding the controller's own position; popularIsLong says which
// literal side (long or short) popular corresponds to, so the candidate
// totals can be fed back through fees.DeriveFundingRates in the right
// order. The return value is desired_unpopular − unpopular: the notional
// delta to open on the unpopular side.
func smartSearch(cfg Config, popular, unpopular numeric.Dec, popularIsLong bool) (numeric.Dec, error) {
	total, err := popular.Add(unpopular)
	if err != nil {
		return numeric.Zero(), err
	}
	if total.IsZero() {
		return numeric.Zero(), xerrors.Newf(xerrors.KindIterationLimitReached, "smart_search: both sides empty")
	}
	lowRatio, err := unpopular.Div(total)
	if err != nil {
		return numeric.Zero(), err
	}
	highRatio := halfRatio

	iterations := cfg.AllowedIterations
	if iterations <= 0 {
		iterations = 32
	}

	low, high := lowRatio, highRatio
	for i := 0; i < iterations; i++ {
		sum, err := low.Add(high)
		if err != nil {
			return numeric.Zero(), err
		}
		targetRatio, err := sum.Div(two)
		if err != nil {
			return numeric.Zero(), err
		}

		oneMinus, err := numeric.One().Sub(targetRatio)
		if err != nil {
			return numeric.Zero(), err
		}
		if oneMinus.IsZero() {
			high = targetRatio
			continue
		}
		num, err := targetRatio.Mul(popular)
		if err != nil {
			return numeric.Zero(), err
		}
		desiredUnpopular, err := num.Div(oneMinus)
		if err != nil {
			return numeric.Zero(), err
		}

		var projected numeric.Dec
		if popularIsLong {
			projected, err = popularRate(cfg, popular, desiredUnpopular)
		} else {
			projected, err = popularRate(cfg, desiredUnpopular, popular)
		}
		if err != nil {
			return numeric.Zero(), err
		}

		diff := projected.SaturatingSub(cfg.TargetFunding)
		if cfg.TargetFunding.GreaterThan(projected) {
			diff = cfg.TargetFunding.SaturatingSub(projected)
		}
		if diff.LessThan(convergeEps) {
			return desiredUnpopular.SaturatingSub(unpopular), nil
		}

		if projected.GreaterThan(cfg.TargetFunding) {
			// Still too popular: push the ratio toward balance.
			low = targetRatio
		} else {
			high = targetRatio
		}
	}

	return numeric.Zero(), xerrors.Newf(xerrors.KindIterationLimitReached, "smart_search: did not converge within %d iterations", iterations)
}
