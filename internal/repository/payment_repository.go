package repository

import (
	"context"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// PaymentRepository defines data access for payment attempts
type PaymentRepository interface {
	// Create stores a new attempt. It returns domain.ErrPaymentAlreadyInProgress
	// when the booking already has an INITIATED or PENDING attempt.
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error

	// GetByReference retrieves an attempt by our transaction reference
	GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error)

	// GetOpenByBooking returns the INITIATED or PENDING attempt of a booking
	GetOpenByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error)

	// GetLatestByBooking returns the most recently created attempt of a booking
	GetLatestByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error)

	// MarkPending stores the checkout details and moves INITIATED to PENDING
	MarkPending(ctx context.Context, reference, providerRef, checkoutURL string) (bool, error)

	// CompareAndSetStatus moves an attempt from one status to another,
	// recording reason on failure. It returns false if the attempt was no longer in from.
	CompareAndSetStatus(ctx context.Context, reference string, from, to domain.PaymentStatus, reason string) (bool, error)

	// ListStale returns INITIATED or PENDING attempts last updated before olderThan
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.PaymentAttempt, error)
}
