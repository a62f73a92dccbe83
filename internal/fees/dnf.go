package fees

import (
	"perpvenue/internal/numeric"
	"perpvenue/internal/xerrors"
)

// deltaRatio is net_notional / sensitivity, carrying its own sign because
// numeric.Dec is unsigned.
type deltaRatio struct {
	negative  bool
	magnitude numeric.Dec
}

func computeRatio(net numeric.Signed[numeric.Notional], sensitivity numeric.Dec) (deltaRatio, error) {
	magnitude, err := net.Abs().Dec().Div(sensitivity)
	if err != nil {
		return deltaRatio{}, err
	}
	return deltaRatio{negative: net.IsNegative(), magnitude: magnitude}, nil
}

func (r deltaRatio) cappedLong(cap numeric.Dec) bool {
	return !r.negative && r.magnitude.GreaterThanOrEqual(cap)
}

func (r deltaRatio) cappedShort(cap numeric.Dec) bool {
	return r.negative && r.magnitude.GreaterThanOrEqual(cap)
}

// EvaluateDeltaNeutrality implements the DNF acceptance rules of §4.E: a
// notional-size adjustment from before to after is rejected if it worsens
// the side already past |r| >= cap, where r = net_notional/sensitivity.
func EvaluateDeltaNeutrality(before, after numeric.Signed[numeric.Notional], sensitivity, cap numeric.Dec) error {
	rb, err := computeRatio(before, sensitivity)
	if err != nil {
		return err
	}
	ra, err := computeRatio(after, sensitivity)
	if err != nil {
		return err
	}

	switch {
	case rb.cappedLong(cap):
		if !ra.negative {
			return xerrors.New(xerrors.KindDeltaNeutralityAlreadyLong,
				"book is already past the long-side delta-neutrality cap")
		}
		if ra.cappedShort(cap) {
			return xerrors.New(xerrors.KindDeltaNeutralityLongToShort,
				"adjustment would flip the book through a capped short side")
		}
		return nil
	case rb.cappedShort(cap):
		if ra.negative {
			return xerrors.New(xerrors.KindDeltaNeutralityAlreadyShort,
				"book is already past the short-side delta-neutrality cap")
		}
		if ra.cappedLong(cap) {
			return xerrors.New(xerrors.KindDeltaNeutralityShortToLong,
				"adjustment would flip the book through a capped long side")
		}
		return nil
	default:
		if ra.cappedLong(cap) {
			return xerrors.New(xerrors.KindDeltaNeutralityNewlyLong,
				"adjustment would newly breach the long-side delta-neutrality cap")
		}
		if ra.cappedShort(cap) {
			return xerrors.New(xerrors.KindDeltaNeutralityNewlyShort,
				"adjustment would newly breach the short-side delta-neutrality cap")
		}
		return nil
	}
}

// Fee computes the delta-neutrality fee charged (positive) or rebated
// (negative) for moving r from before to after against sensitivity,
// modelled as sensitivity · tax · ((ratio after)² − (ratio before)²) / 2 — the
// integral of a linearly-increasing marginal fee over the ratio interval,
// consistent with the glossary's "proportional to how far net_notional /
// sensitivity moves."
func Fee(before, after numeric.Signed[numeric.Notional], sensitivity, tax numeric.Dec) (numeric.Signed[numeric.Collateral], error) {
	rb, err := computeRatio(before, sensitivity)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	ra, err := computeRatio(after, sensitivity)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}

	beforeSq, err := rb.magnitude.Mul(rb.magnitude)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	afterSq, err := ra.magnitude.Mul(ra.magnitude)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}

	var magnitude numeric.Dec
	var negative bool
	if afterSq.GreaterThanOrEqual(beforeSq) {
		magnitude, err = afterSq.Sub(beforeSq)
		negative = false
	} else {
		magnitude, err = beforeSq.Sub(afterSq)
		negative = true
	}
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}

	scaled, err := sensitivity.Mul(magnitude)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	scaled, err = scaled.Mul(tax)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	two := numeric.FromUint64(2)
	scaled, err = scaled.Div(two)
	if err != nil {
		return numeric.Signed[numeric.Collateral]{}, err
	}
	return numeric.NewSigned(numeric.NewCollateral(scaled), negative), nil
}
