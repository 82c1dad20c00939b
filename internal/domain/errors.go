package domain

import (
	"errors"
	"fmt"
)

// Error kinds shared by every component. Package level errors wrap one of
// these so callers can branch with errors.Is without knowing the origin.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrOutOfStock        = errors.New("out of stock")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrUnavailable       = errors.New("storage unavailable")
)

// IsBusiness reports whether err is an expected outcome that should be
// returned to the caller rather than treated as a fault.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPermissionDenied)
}

// Unavailable marks a storage or transport fault. Business errors and nil
// pass through unchanged.
func Unavailable(err error) error {
	if err == nil || IsBusiness(err) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
