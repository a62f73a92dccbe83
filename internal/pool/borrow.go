package pool

import (
	"time"

	"perpvenue/internal/numeric"
)

// NsPerDay is the number of nanoseconds in a day, the time base the borrow
// rate's sensitivity term is annualised against (§4.D).
const NsPerDay = int64(24 * time.Hour)

// Utilisation returns locked / (locked + unlocked), or zero if the pool is
// empty.
func Utilisation(t Totals) (numeric.Dec, error) {
	total, err := t.TotalCollateral()
	if err != nil {
		return numeric.Zero(), err
	}
	if total.IsZero() {
		return numeric.Zero(), nil
	}
	return t.Locked.Dec().Div(total.Dec())
}

// DeriveBorrowRate advances the annualised borrow rate by
// Δrate = borrow_fee_sensitivity · (actual_utilisation − target_utilisation) · (nanos_since_last/NS_PER_DAY),
// using a −1 utilisation bias when the pool is empty, then clamps to
// [min, max] (§4.D).
func DeriveBorrowRate(previousRate numeric.Dec, totals Totals, sensitivity, targetUtilisation, min, max numeric.Dec, elapsed time.Duration) (numeric.Dec, error) {
	actual, err := Utilisation(totals)
	if err != nil {
		return numeric.Zero(), err
	}
	total, err := totals.TotalCollateral()
	if err != nil {
		return numeric.Zero(), err
	}

	// Dec is unsigned, so the gap is carried as a magnitude plus a sign flag.
	var utilisationGap numeric.Dec
	negativeGap := false
	if total.IsZero() {
		utilisationGap = numeric.One()
		negativeGap = true
	} else if actual.GreaterThanOrEqual(targetUtilisation) {
		utilisationGap, err = actual.Sub(targetUtilisation)
		if err != nil {
			return numeric.Zero(), err
		}
	} else {
		utilisationGap, err = targetUtilisation.Sub(actual)
		if err != nil {
			return numeric.Zero(), err
		}
		negativeGap = true
	}

	elapsedRatio, err := numeric.MustParseDec(nsString(elapsed)).Div(numeric.MustParseDec(nsString(time.Duration(NsPerDay))))
	if err != nil {
		return numeric.Zero(), err
	}

	deltaMagnitude, err := sensitivity.Mul(utilisationGap)
	if err != nil {
		return numeric.Zero(), err
	}
	deltaMagnitude, err = deltaMagnitude.Mul(elapsedRatio)
	if err != nil {
		return numeric.Zero(), err
	}

	var next numeric.Dec
	if negativeGap {
		next = previousRate.SaturatingSub(deltaMagnitude)
	} else {
		next, err = previousRate.Add(deltaMagnitude)
		if err != nil {
			return numeric.Zero(), err
		}
	}
	return next.Clamp(min, max), nil
}

func absDec(d numeric.Dec) numeric.Dec {
	if d.LessThan(numeric.Zero()) {
		neg, _ := numeric.Zero().Sub(d)
		return neg
	}
	return d
}

func nsString(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return numeric.FromUint64(uint64(d)).String()
}

// SplitBorrowRate divides the annualised borrow rate between LP and xLP
// using a linear-interpolated multiplier min_mult <= m <= max_mult weighted
// by total_lp vs total_xlp, routing 100% to whichever class holds all the
// deposits in the degenerate case (§4.D).
func SplitBorrowRate(rate numeric.Dec, totals Totals, minMult, maxMult numeric.Dec) (lpRate, xlpRate numeric.Dec, err error) {
	if totals.TotalXlp.IsZero() {
		return rate, numeric.Zero(), nil
	}
	if totals.TotalLp.IsZero() {
		return numeric.Zero(), rate, nil
	}
	totalShares, err := totals.TotalLp.Add(totals.TotalXlp)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	xlpShare, err := totals.TotalXlp.Dec().Div(totalShares.Dec())
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	spread, err := maxMult.Sub(minMult)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	interpolated, err := spread.Mul(xlpShare)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	xlpMult, err := minMult.Add(interpolated)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	xlpRate, err = rate.Mul(xlpMult)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}

	// lpRate is derived so the share-weighted average of (lpRate, xlpRate)
	// reproduces rate exactly: lpRate = (rate·totalShares − xlpRate·totalXlp) / totalLp.
	weightedTotal, err := rate.Mul(totalShares.Dec())
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	xlpPortion, err := xlpRate.Mul(totals.TotalXlp.Dec())
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	lpPortion, err := weightedTotal.Sub(xlpPortion)
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	lpRate, err = lpPortion.Div(totals.TotalLp.Dec())
	if err != nil {
		return numeric.Zero(), numeric.Zero(), err
	}
	return lpRate, xlpRate, nil
}
