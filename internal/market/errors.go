// Package market implements the typed entity layer (users, listings,
// orders) on top of the document store. Untyped store records never leak
// past this package: every read converts into a schema struct and every
// write converts back.
package market

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input that fails schema or business validation.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a missing user, listing, or order.
	ErrNotFound = errors.New("not found")

	// ErrForbidden marks an operation by a user who is neither the owner
	// nor an admin.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict marks a uniqueness or state conflict, e.g. a taken
	// username or a deletion blocked by open orders.
	ErrConflict = errors.New("conflict")
)

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden checks if an error is an authorization error
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
