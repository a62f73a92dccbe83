package numeric

import "errors"

// ErrZeroValue is returned by NewNonZero when the supplied magnitude is zero.
var ErrZeroValue = errors.New("numeric: value must be non-zero")

// NonZero is a refinement type carrying the protocol's invariant that a
// quantity (active_collateral, counter_collateral, an unstaking xLP amount,
// ...) can never be zero while it exists. The only way to construct one is
// through NewNonZero, which enforces the invariant at the boundary instead
// of scattering zero-checks through call sites.
type NonZero[T Valued[T]] struct {
	value T
}

// NewNonZero validates v and wraps it, failing with ErrZeroValue if v is zero.
func NewNonZero[T Valued[T]](v T) (NonZero[T], error) {
	if v.Dec().IsZero() {
		return NonZero[T]{}, ErrZeroValue
	}
	return NonZero[T]{value: v}, nil
}

// Get returns the wrapped value.
func (n NonZero[T]) Get() T { return n.value }

// Dec returns the wrapped value's magnitude.
func (n NonZero[T]) Dec() Dec { return n.value.Dec() }

// String renders the wrapped value.
func (n NonZero[T]) String() string { return n.value.Dec().String() }
