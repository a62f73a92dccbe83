package numeric

import "fmt"

// Valued is satisfied by every unit type (Collateral, Notional, Usd, ...):
// it can surface its magnitude as a Dec and rebuild itself from one. Signed
// and NonZero are built generically on top of it so the sign/refinement
// logic is written exactly once instead of once per unit.
type Valued[T any] interface {
	Dec() Dec
	FromDec(Dec) T
}

// Signed pairs a magnitude of type T with an explicit sign, mirroring the
// protocol's Signed<T> newtype (§9: "a single Signed<T> newtype replaces
// ad-hoc long/short direction fields"). The zero value is positive zero.
type Signed[T Valued[T]] struct {
	neg bool
	abs T
}

// NewSigned builds a Signed value from a magnitude and a sign flag. A zero
// magnitude is always normalised to non-negative.
func NewSigned[T Valued[T]](abs T, negative bool) Signed[T] {
	if abs.Dec().IsZero() {
		negative = false
	}
	return Signed[T]{neg: negative, abs: abs}
}

// Positive wraps abs as a non-negative Signed value.
func Positive[T Valued[T]](abs T) Signed[T] {
	return NewSigned(abs, false)
}

// Negative wraps abs as a non-positive Signed value.
func Negative[T Valued[T]](abs T) Signed[T] {
	return NewSigned(abs, true)
}

// IsZero reports whether the magnitude is zero.
func (s Signed[T]) IsZero() bool { return s.abs.Dec().IsZero() }

// IsPositive reports s > 0.
func (s Signed[T]) IsPositive() bool { return !s.neg && !s.IsZero() }

// IsNegative reports s < 0.
func (s Signed[T]) IsNegative() bool { return s.neg && !s.IsZero() }

// IsPositiveOrZero reports s >= 0.
func (s Signed[T]) IsPositiveOrZero() bool { return !s.neg }

// IsNegativeOrZero reports s <= 0.
func (s Signed[T]) IsNegativeOrZero() bool { return s.neg || s.IsZero() }

// Abs returns the unsigned magnitude.
func (s Signed[T]) Abs() T { return s.abs }

// Negated returns s with its sign flipped.
func (s Signed[T]) Negated() Signed[T] {
	return NewSigned(s.abs, !s.neg)
}

// Cmp orders two signed values algebraically.
func (s Signed[T]) Cmp(o Signed[T]) int {
	switch {
	case s.neg == o.neg:
		c := s.abs.Dec().Cmp(o.abs.Dec())
		if s.neg {
			return -c
		}
		return c
	case s.IsZero() && o.IsZero():
		return 0
	case s.neg:
		return -1
	default:
		return 1
	}
}

// Add performs signed addition, propagating any overflow from the
// underlying unsigned arithmetic.
func (s Signed[T]) Add(o Signed[T]) (Signed[T], error) {
	var zero T
	switch {
	case s.neg == o.neg:
		sum, err := s.abs.Dec().Add(o.abs.Dec())
		if err != nil {
			return Signed[T]{}, err
		}
		return NewSigned(zero.FromDec(sum), s.neg), nil
	case s.abs.Dec().GreaterThanOrEqual(o.abs.Dec()):
		diff, err := s.abs.Dec().Sub(o.abs.Dec())
		if err != nil {
			return Signed[T]{}, err
		}
		return NewSigned(zero.FromDec(diff), s.neg), nil
	default:
		diff, err := o.abs.Dec().Sub(s.abs.Dec())
		if err != nil {
			return Signed[T]{}, err
		}
		return NewSigned(zero.FromDec(diff), o.neg), nil
	}
}

// Sub performs signed subtraction.
func (s Signed[T]) Sub(o Signed[T]) (Signed[T], error) {
	return s.Add(o.Negated())
}

// String renders the signed value with an explicit "-" prefix for
// negative magnitudes.
func (s Signed[T]) String() string {
	if s.neg {
		return fmt.Sprintf("-%s", s.abs.Dec().String())
	}
	return s.abs.Dec().String()
}

// MarshalText implements encoding.TextMarshaler.
func (s Signed[T]) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
