package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpvenue/internal/numeric"
	"perpvenue/internal/xerrors"
)

func dec(s string) numeric.Dec { return numeric.MustParseDec(s) }

func TestDeriveFundingRates_OneSidedMarketIsZero(t *testing.T) {
	rates, err := DeriveFundingRates(dec("1000"), dec("0"), dec("1"), dec("0.02"), dec("1"), dec("0.01"))
	require.NoError(t, err)
	assert.True(t, rates.Long.IsZero())
	assert.True(t, rates.Short.IsZero())
}

func TestDeriveFundingRates_EmptyMarketIsZero(t *testing.T) {
	rates, err := DeriveFundingRates(dec("0"), dec("0"), dec("1"), dec("0.02"), dec("1"), dec("0.01"))
	require.NoError(t, err)
	assert.True(t, rates.Long.IsZero())
	assert.True(t, rates.Short.IsZero())
}

func TestDeriveFundingRates_BalancedMarketLongEqualsShort(t *testing.T) {
	rates, err := DeriveFundingRates(dec("500"), dec("500"), dec("1"), dec("0.02"), dec("1"), dec("0.01"))
	require.NoError(t, err)
	assert.True(t, rates.Long.Equal(rates.Short))
}

func TestDeriveFundingRates_PopularSideCappedAtRfCap(t *testing.T) {
	// A huge imbalance with a large sensitivity should still clamp the
	// popular rate at rf_cap.
	rates, err := DeriveFundingRates(dec("1000000"), dec("1"), dec("1000"), dec("0.02"), dec("1"), dec("0.01"))
	require.NoError(t, err)
	assert.True(t, rates.Long.Equal(dec("0.02")))
	assert.True(t, rates.PopularIsLong)
}

func TestDeriveFundingRates_UnpopularSideScalesByInterestRatio(t *testing.T) {
	rates, err := DeriveFundingRates(dec("1000"), dec("100"), dec("0.1"), dec("0.5"), dec("1"), dec("0.01"))
	require.NoError(t, err)
	require.True(t, rates.PopularIsLong)
	// unpopular = popular_rate * popular / unpopular
	want, err := rates.Long.Mul(dec("1000"))
	require.NoError(t, err)
	want, err = want.Div(dec("100"))
	require.NoError(t, err)
	assert.True(t, rates.Short.Equal(want))
}

func TestEvaluateDeltaNeutrality_AlreadyLongRejectsFurtherLong(t *testing.T) {
	before := numeric.Positive(numeric.NewNotional(dec("150")))
	after := numeric.Positive(numeric.NewNotional(dec("200")))
	err := EvaluateDeltaNeutrality(before, after, dec("100"), dec("1"))
	require.Error(t, err)
	xe, ok := err.(*xerrors.Error)
	require.True(t, ok)
	assert.Equal(t, xerrors.KindDeltaNeutralityAlreadyLong, xe.Kind)
}

func TestEvaluateDeltaNeutrality_AlreadyLongAcceptsMoveTowardShort(t *testing.T) {
	before := numeric.Positive(numeric.NewNotional(dec("150")))
	after := numeric.Negative(numeric.NewNotional(dec("50")))
	err := EvaluateDeltaNeutrality(before, after, dec("100"), dec("1"))
	assert.NoError(t, err)
}

func TestEvaluateDeltaNeutrality_LongToShortAcrossCapIsRejected(t *testing.T) {
	before := numeric.Positive(numeric.NewNotional(dec("150")))
	after := numeric.Negative(numeric.NewNotional(dec("150")))
	err := EvaluateDeltaNeutrality(before, after, dec("100"), dec("1"))
	require.Error(t, err)
	xe, ok := err.(*xerrors.Error)
	require.True(t, ok)
	assert.Equal(t, xerrors.KindDeltaNeutralityLongToShort, xe.Kind)
}

func TestEvaluateDeltaNeutrality_NewlyLongIsRejected(t *testing.T) {
	before := numeric.Positive(numeric.NewNotional(dec("50")))
	after := numeric.Positive(numeric.NewNotional(dec("150")))
	err := EvaluateDeltaNeutrality(before, after, dec("100"), dec("1"))
	require.Error(t, err)
	xe, ok := err.(*xerrors.Error)
	require.True(t, ok)
	assert.Equal(t, xerrors.KindDeltaNeutralityNewlyLong, xe.Kind)
}

func TestEvaluateDeltaNeutrality_WithinCapIsAccepted(t *testing.T) {
	before := numeric.Positive(numeric.NewNotional(dec("10")))
	after := numeric.Positive(numeric.NewNotional(dec("50")))
	assert.NoError(t, EvaluateDeltaNeutrality(before, after, dec("100"), dec("1")))
}

func TestFee_ChargesMoreAsRatioMovesAwayFromZero(t *testing.T) {
	before := numeric.Positive(numeric.NewNotional(dec("0")))
	after := numeric.Positive(numeric.NewNotional(dec("50")))
	fee, err := Fee(before, after, dec("100"), dec("1"))
	require.NoError(t, err)
	assert.True(t, fee.IsPositive())
}

func TestFee_RebatesWhenRatioMovesTowardZero(t *testing.T) {
	before := numeric.Positive(numeric.NewNotional(dec("50")))
	after := numeric.Positive(numeric.NewNotional(dec("0")))
	fee, err := Fee(before, after, dec("100"), dec("1"))
	require.NoError(t, err)
	assert.True(t, fee.IsNegative())
}

func TestFee_NoMovementIsZero(t *testing.T) {
	same := numeric.Positive(numeric.NewNotional(dec("25")))
	fee, err := Fee(same, same, dec("100"), dec("1"))
	require.NoError(t, err)
	assert.True(t, fee.IsZero())
}
