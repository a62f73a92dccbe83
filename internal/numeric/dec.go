// Package numeric implements the fixed-point decimal arithmetic the rest of
// the engine is built on: an unsigned 256-bit decimal with 18 fractional
// digits (Dec), a signed variant (Signed), a non-zero refinement (NonZero),
// and the typed unit wrappers (Collateral, Notional, Usd, LpToken, Base,
// Price) that keep the fee engine and position store from mixing units by
// accident.
//
// All arithmetic here is checked: overflow, underflow and division by zero
// return a typed error instead of wrapping or panicking.
package numeric

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
)

// DecimalPlaces is the number of fractional digits carried by Dec.
const DecimalPlaces = 18

var (
	// ErrOverflow is returned when an operation would exceed the 256-bit range.
	ErrOverflow = errors.New("numeric: overflow")
	// ErrUnderflow is returned when an unsigned subtraction would go negative.
	ErrUnderflow = errors.New("numeric: underflow")
	// ErrDivByZero is returned by any division-like operation with a zero divisor.
	ErrDivByZero = errors.New("numeric: division by zero")
	// ErrParse is returned when a decimal string cannot be parsed.
	ErrParse = errors.New("numeric: parse error")
)

var scaleBig = new(big.Int).Exp(big.NewInt(10), big.NewInt(DecimalPlaces), nil)

// Dec is an unsigned fixed-point decimal with DecimalPlaces fractional
// digits, backed by a 256-bit unsigned integer. The zero value is zero.
type Dec struct {
	bits uint256.Int
}

// Zero is the additive identity.
func Zero() Dec { return Dec{} }

// One is 1.0 represented at the package's fixed scale.
func One() Dec {
	var d Dec
	d.bits.SetFromBig(scaleBig)
	return d
}

// FromUint64 builds a Dec representing the given whole number (e.g.
// FromUint64(5) == 5.0).
func FromUint64(v uint64) Dec {
	var d Dec
	whole := new(big.Int).Mul(big.NewInt(int64(v)), scaleBig)
	d.bits.SetFromBig(whole)
	return d
}

// FromRaw builds a Dec from its raw fixed-point integer representation
// (i.e. the value already multiplied by 10^DecimalPlaces). Used when
// decoding from storage.
func FromRaw(raw *uint256.Int) Dec {
	var d Dec
	d.bits.Set(raw)
	return d
}

// Raw returns the underlying fixed-point integer representation.
func (d Dec) Raw() uint256.Int { return d.bits }

// ParseDec parses a base-10 decimal string ("1", "1.5", "0.000000000000000001")
// into a Dec. Negative strings are rejected; use ParseSigned for those.
func ParseDec(s string) (Dec, error) {
	if s == "" {
		return Dec{}, fmt.Errorf("%w: empty string", ErrParse)
	}
	r := new(big.Rat)
	if _, ok := r.SetString(s); !ok {
		return Dec{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	if r.Sign() < 0 {
		return Dec{}, fmt.Errorf("%w: %q is negative", ErrParse, s)
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(scaleBig))
	if !scaled.IsInt() {
		// Truncate any precision finer than DecimalPlaces, matching the
		// protocol's fixed-point rounding (round toward zero).
		num := new(big.Int).Quo(scaled.Num(), scaled.Denom())
		scaled = new(big.Rat).SetInt(num)
	}
	var d Dec
	overflow := d.bits.SetFromBig(scaled.Num())
	if overflow {
		return Dec{}, fmt.Errorf("%w: %q", ErrOverflow, s)
	}
	return d, nil
}

// MustParseDec is ParseDec, panicking on error; intended for constants in
// tests and config defaults, never for untrusted input.
func MustParseDec(s string) Dec {
	d, err := ParseDec(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String renders the decimal in base-10 with trailing zero trimming.
func (d Dec) String() string {
	r := new(big.Rat).SetFrac(d.bits.ToBig(), scaleBig)
	s := strings.TrimRight(r.FloatString(DecimalPlaces), "0")
	return strings.TrimSuffix(s, ".")
}

// Dec returns d itself, letting Dec satisfy Valued[Dec] so it can be used
// directly as numeric.Signed[Dec] wherever a quantity needs an explicit
// sign without a dedicated unit type.
func (d Dec) Dec() Dec { return d }

// FromDec satisfies Valued[Dec].
func (Dec) FromDec(d Dec) Dec { return d }

// IsZero reports whether the value is exactly zero.
func (d Dec) IsZero() bool { return d.bits.IsZero() }

// Cmp returns -1, 0 or +1 comparing d to o.
func (d Dec) Cmp(o Dec) int { return d.bits.Cmp(&o.bits) }

// Equal reports value equality.
func (d Dec) Equal(o Dec) bool { return d.Cmp(o) == 0 }

// LessThan reports d < o.
func (d Dec) LessThan(o Dec) bool { return d.Cmp(o) < 0 }

// GreaterThan reports d > o.
func (d Dec) GreaterThan(o Dec) bool { return d.Cmp(o) > 0 }

// LessThanOrEqual reports d <= o.
func (d Dec) LessThanOrEqual(o Dec) bool { return d.Cmp(o) <= 0 }

// GreaterThanOrEqual reports d >= o.
func (d Dec) GreaterThanOrEqual(o Dec) bool { return d.Cmp(o) >= 0 }

// Add returns d+o, failing with ErrOverflow if the sum does not fit in 256 bits.
func (d Dec) Add(o Dec) (Dec, error) {
	var z Dec
	overflow := z.bits.AddOverflow(&d.bits, &o.bits)
	if overflow {
		return Dec{}, ErrOverflow
	}
	return z, nil
}

// Sub returns d-o, failing with ErrUnderflow if o > d (Dec is unsigned).
func (d Dec) Sub(o Dec) (Dec, error) {
	if d.LessThan(o) {
		return Dec{}, ErrUnderflow
	}
	var z Dec
	z.bits.SubOverflow(&d.bits, &o.bits)
	return z, nil
}

// SaturatingSub returns d-o, or zero if o > d. Used only where the protocol
// explicitly wants clamping (e.g. capped fee application); prefer Sub
// elsewhere so underflow bugs surface as errors.
func (d Dec) SaturatingSub(o Dec) Dec {
	if d.LessThan(o) {
		return Zero()
	}
	z, _ := d.Sub(o)
	return z
}

// Mul returns d*o scaled back down by 10^DecimalPlaces (i.e. ordinary
// fixed-point multiplication), failing with ErrOverflow if the unscaled
// product or the final result does not fit in 256 bits.
func (d Dec) Mul(o Dec) (Dec, error) {
	product := new(big.Int).Mul(d.bits.ToBig(), o.bits.ToBig())
	product.Quo(product, scaleBig)
	var z Dec
	overflow := z.bits.SetFromBig(product)
	if overflow {
		return Dec{}, ErrOverflow
	}
	return z, nil
}

// Div returns d/o scaled by 10^DecimalPlaces (ordinary fixed-point
// division), failing with ErrDivByZero if o is zero or ErrOverflow if the
// result does not fit in 256 bits. Division truncates toward zero.
func (d Dec) Div(o Dec) (Dec, error) {
	if o.IsZero() {
		return Dec{}, ErrDivByZero
	}
	scaled := new(big.Int).Mul(d.bits.ToBig(), scaleBig)
	scaled.Quo(scaled, o.bits.ToBig())
	var z Dec
	overflow := z.bits.SetFromBig(scaled)
	if overflow {
		return Dec{}, ErrOverflow
	}
	return z, nil
}

// Min returns the smaller of d and o.
func (d Dec) Min(o Dec) Dec {
	if d.LessThan(o) {
		return d
	}
	return o
}

// Max returns the larger of d and o.
func (d Dec) Max(o Dec) Dec {
	if d.GreaterThan(o) {
		return d
	}
	return o
}

// Clamp restricts d to [lo, hi]. Callers must ensure lo <= hi.
func (d Dec) Clamp(lo, hi Dec) Dec {
	return d.Max(lo).Min(hi)
}

// Float64 converts the decimal to a float64, for logging and non-consensus
// display paths only; never use the result in checked arithmetic.
func (d Dec) Float64() float64 {
	r := new(big.Rat).SetFrac(d.bits.ToBig(), scaleBig)
	f, _ := r.Float64()
	return f
}

// MarshalText implements encoding.TextMarshaler so Dec round-trips through
// JSON and YAML as a plain decimal string.
func (d Dec) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Dec) UnmarshalText(text []byte) error {
	parsed, err := ParseDec(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Bytes32 returns the fixed-width big-endian encoding of the raw fixed-point
// integer, used as the sortable key component in the trigger maps and other
// ordered stores (§6: "numeric keys use fixed-width big-endian encoding").
func (d Dec) Bytes32() [32]byte {
	return d.bits.Bytes32()
}

// DecFromBytes32 is the inverse of Bytes32.
func DecFromBytes32(b [32]byte) Dec {
	var d Dec
	d.bits.SetBytes32(b[:])
	return d
}
