package domain

import (
	"errors"
	"fmt"
)

// Booking outcome kinds. Compare with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnknownTier       = errors.New("unknown tier")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPaymentDeclined   = errors.New("payment declined")
	ErrInfrastructure    = errors.New("service temporarily unavailable, retry later")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

// Storage level errors, translated by the booking service.
var (
	ErrItemClassNotFound  = errors.New("item class not found")
	ErrLockTimeout        = errors.New("lock wait timeout")
	ErrLockNotHeld        = errors.New("item class lock not held by transaction")
	ErrInvariantViolation = errors.New("inventory invariant violation")
)

type InvalidInputError struct {
	Reason string
}

func NewInvalidInput(reason string) *InvalidInputError {
	return &InvalidInputError{Reason: reason}
}

func (e *InvalidInputError) Error() string { return "invalid input: " + e.Reason }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

type UnknownTierError struct {
	ItemID string
}

func (e *UnknownTierError) Error() string { return fmt.Sprintf("unknown tier %q", e.ItemID) }

func (e *UnknownTierError) Is(target error) bool { return target == ErrUnknownTier }

type InsufficientStockError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.ItemID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// InfrastructureError hides the underlying fault behind a generic retryable
// message. The cause stays reachable through Unwrap for logging.
type InfrastructureError struct {
	Cause error
}

func (e *InfrastructureError) Error() string { return ErrInfrastructure.Error() }

func (e *InfrastructureError) Is(target error) bool { return target == ErrInfrastructure }

func (e *InfrastructureError) Unwrap() error { return e.Cause }

// IsBookingError reports whether err already carries one of the booking kinds.
func IsBookingError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnknownTier) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrPaymentDeclined) ||
		errors.Is(err, ErrInfrastructure) ||
		errors.Is(err, ErrDuplicateRequest)
}
