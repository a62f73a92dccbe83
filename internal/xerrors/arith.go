package xerrors

import (
	"errors"

	"perpvenue/internal/numeric"
)

// FromArithmetic translates a numeric package sentinel into the matching
// engine Kind, or returns nil if err is nil. Any other error is wrapped
// unchanged so callers can still fmt.Errorf %w it.
func FromArithmetic(err error, description string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, numeric.ErrOverflow):
		return Wrap(KindArithmeticOverflow, err, description)
	case errors.Is(err, numeric.ErrUnderflow):
		return Wrap(KindArithmeticUnderflow, err, description)
	case errors.Is(err, numeric.ErrDivByZero):
		return Wrap(KindArithmeticDivByZero, err, description)
	default:
		return err
	}
}
