package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrValidation is the parent of every input validation error
	ErrValidation = errors.New("validation failed")

	// Validation errors
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	ErrInvalidUserID     = fmt.Errorf("%w: invalid user id", ErrValidation)
	ErrInvalidResourceID = fmt.Errorf("%w: invalid resource id", ErrValidation)
	ErrInvalidBookingID  = fmt.Errorf("%w: invalid booking id", ErrValidation)
	ErrTokenInvalid      = fmt.Errorf("%w: invalid push token", ErrValidation)

	// Booking errors
	ErrResourceNotFound  = errors.New("resource not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrCapacityExceeded  = errors.New("insufficient capacity")
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// Payment errors
	ErrPaymentAlreadyInProgress = errors.New("payment already in progress for booking")
	ErrPaymentNotFound          = errors.New("payment attempt not found")
	ErrProviderUnavailable      = errors.New("payment provider unavailable")
	ErrInvalidSignature         = errors.New("invalid webhook signature")
	ErrUnknownProvider          = errors.New("unknown payment provider")

	// Notification errors
	ErrDeviceNotRegistered     = errors.New("device not registered")
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrInvalidNotificationData = errors.New("invalid notification data")
	ErrPushTokenNotFound       = errors.New("push token not found")
)

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidNotificationData)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrResourceNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrNotificationNotFound) ||
		errors.Is(err, ErrPushTokenNotFound)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrPaymentAlreadyInProgress)
}

// IsRetryable reports whether the caller may retry the same request later
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
