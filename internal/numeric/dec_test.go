package numeric

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDec_RoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "1.5", "0.000000000000000001", "123456789.987654321"} {
		d, err := ParseDec(s)
		require.NoError(t, err)
		assert.Equal(t, s, d.String())
	}
}

func TestParseDec_RejectsNegativeAndGarbage(t *testing.T) {
	_, err := ParseDec("-1")
	assert.Error(t, err)
	_, err = ParseDec("not-a-number")
	assert.Error(t, err)
	_, err = ParseDec("")
	assert.ErrorIs(t, err, ErrParse)
}

func TestDec_AddSub(t *testing.T) {
	a := MustParseDec("1.5")
	b := MustParseDec("2.25")
	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "3.75", sum.String())

	diff, err := b.Sub(a)
	require.NoError(t, err)
	assert.Equal(t, "0.75", diff.String())
}

func TestDec_SubUnderflow(t *testing.T) {
	a := MustParseDec("1")
	b := MustParseDec("2")
	_, err := a.Sub(b)
	assert.ErrorIs(t, err, ErrUnderflow)
}

func TestDec_SaturatingSub(t *testing.T) {
	a := MustParseDec("1")
	b := MustParseDec("5")
	assert.True(t, a.SaturatingSub(b).IsZero())
	assert.Equal(t, "4", b.SaturatingSub(a).String())
}

func TestDec_MulDiv(t *testing.T) {
	a := MustParseDec("2")
	b := MustParseDec("3.5")
	prod, err := a.Mul(b)
	require.NoError(t, err)
	assert.Equal(t, "7", prod.String())

	quot, err := b.Div(a)
	require.NoError(t, err)
	assert.Equal(t, "1.75", quot.String())
}

func TestDec_DivByZero(t *testing.T) {
	a := MustParseDec("1")
	_, err := a.Div(Zero())
	assert.ErrorIs(t, err, ErrDivByZero)
}

func TestDec_MulOverflow(t *testing.T) {
	// The maximum representable 256-bit raw value squared overflows even
	// before accounting for the fixed-point rescale division.
	var max uint256.Int
	max.SetAllOne()
	huge := FromRaw(&max)
	_, err := huge.Mul(huge)
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestDec_Ordering(t *testing.T) {
	small := MustParseDec("1")
	big := MustParseDec("2")
	assert.True(t, small.LessThan(big))
	assert.True(t, big.GreaterThan(small))
	assert.True(t, small.LessThanOrEqual(small))
	assert.True(t, small.GreaterThanOrEqual(small))
	assert.True(t, small.Equal(MustParseDec("1")))
}

func TestDec_ClampMinMax(t *testing.T) {
	lo := MustParseDec("1")
	hi := MustParseDec("10")
	assert.Equal(t, lo, MustParseDec("0").Clamp(lo, hi))
	assert.Equal(t, hi, MustParseDec("20").Clamp(lo, hi))
	assert.Equal(t, MustParseDec("5"), MustParseDec("5").Clamp(lo, hi))
	assert.Equal(t, lo, lo.Min(hi))
	assert.Equal(t, hi, lo.Max(hi))
}

func TestDec_MarshalUnmarshalText(t *testing.T) {
	d := MustParseDec("42.5")
	b, err := d.MarshalText()
	require.NoError(t, err)

	var out Dec
	require.NoError(t, out.UnmarshalText(b))
	assert.True(t, d.Equal(out))
}

func TestDec_Bytes32RoundTrip(t *testing.T) {
	d := MustParseDec("123.456")
	b := d.Bytes32()
	out := DecFromBytes32(b)
	assert.True(t, d.Equal(out))
}

func TestDec_Float64ApproximatesValue(t *testing.T) {
	d := MustParseDec("3.25")
	assert.True(t, math.Abs(d.Float64()-3.25) < 1e-9)
}

func TestNonZero_RejectsZero(t *testing.T) {
	_, err := NewNonZero(Collateral{})
	assert.ErrorIs(t, err, ErrZeroValue)

	nz, err := NewNonZero(NewCollateral(MustParseDec("1")))
	require.NoError(t, err)
	assert.Equal(t, "1", nz.String())
}

func TestSigned_AddOppositeSignsCancel(t *testing.T) {
	long := Positive(NewNotional(MustParseDec("100")))
	short := Negative(NewNotional(MustParseDec("100")))
	sum, err := long.Add(short)
	require.NoError(t, err)
	assert.True(t, sum.IsZero())
}

func TestSigned_AddOppositeSignsTakesLargerSign(t *testing.T) {
	long := Positive(NewNotional(MustParseDec("150")))
	short := Negative(NewNotional(MustParseDec("100")))
	sum, err := long.Add(short)
	require.NoError(t, err)
	assert.True(t, sum.IsPositive())
	assert.Equal(t, "50", sum.Abs().String())

	sum2, err := short.Add(long.Negated())
	require.NoError(t, err)
	assert.True(t, sum2.IsNegative())
	assert.Equal(t, "250", sum2.Abs().String())
}

func TestSigned_SubIsAddOfNegated(t *testing.T) {
	a := Positive(NewCollateral(MustParseDec("10")))
	b := Positive(NewCollateral(MustParseDec("3")))
	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "7", diff.Abs().String())
	assert.True(t, diff.IsPositive())
}

func TestSigned_ZeroIsNeitherPositiveNorNegative(t *testing.T) {
	z := Positive(Collateral{})
	assert.False(t, z.IsPositive())
	assert.False(t, z.IsNegative())
	assert.True(t, z.IsPositiveOrZero())
	assert.True(t, z.IsNegativeOrZero())
}
