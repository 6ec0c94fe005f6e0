package repository

import (
	"context"
	"errors"
)

var (
	// ErrCapacityNotInitialized is returned by counters that keep their own copy
	// of availability when the resource has not been loaded yet
	ErrCapacityNotInitialized = errors.New("capacity not initialized for resource")

	// ErrHoldExists is returned when a booking id already holds capacity
	ErrHoldExists = errors.New("capacity already held for booking")
)

// CapacityCounter atomically holds and returns capacity per booking
type CapacityCounter interface {
	// Reserve decrements availability by qty and records a hold for bookingID.
	// It returns domain.ErrCapacityExceeded when fewer than qty units remain.
	Reserve(ctx context.Context, bookingID, resourceID string, qty int) (remaining int64, err error)

	// Release returns the hold of bookingID. Releasing twice is a no-op that reports false.
	Release(ctx context.Context, bookingID string) (released bool, err error)

	// Available returns the remaining capacity of a resource
	Available(ctx context.Context, resourceID string) (int64, error)

	// SetCapacity overwrites the remaining capacity of a resource
	SetCapacity(ctx context.Context, resourceID string, available int64) error
}
