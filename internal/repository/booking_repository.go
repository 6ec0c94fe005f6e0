package repository

import (
	"context"
	"errors"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// ErrDuplicateBooking is returned when a booking id is inserted twice
var ErrDuplicateBooking = errors.New("booking already exists")

// BookingRepository defines the interface for booking data access
type BookingRepository interface {
	// Create creates a new booking record
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by its ID
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// ListByUser returns a page of a user's bookings, newest first, and the total count
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, int64, error)

	// CompareAndSetStatus moves the booking from one status to another.
	// It returns false when the stored status was no longer from.
	CompareAndSetStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (bool, error)

	// ListStale returns bookings in status last updated before olderThan, oldest first
	ListStale(ctx context.Context, status domain.BookingStatus, olderThan time.Time, limit int) ([]*domain.Booking, error)
}
