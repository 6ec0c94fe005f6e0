package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ExpiryService releases the capacity of bookings abandoned before payment
type ExpiryService interface {
	// ExpireStale expires PENDING and AWAITING_PAYMENT bookings untouched for
	// longer than olderThan and returns how many it expired
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type expiryService struct {
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	bookings    BookingService
	payments    PaymentService
	now         func() time.Time
	log         *logger.Logger
}

// NewExpiryService creates a new expiry service
func NewExpiryService(
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	bookings BookingService,
	payments PaymentService,
) ExpiryService {
	return &expiryService{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		bookings:    bookings,
		payments:    payments,
		now:         time.Now,
		log:         logger.Get().Named("expiry-service"),
	}
}

func (s *expiryService) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.expire")
	defer span.End()

	cutoff := s.now().UTC().Add(-olderThan)
	expired := 0
	for _, status := range []domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusAwaitingPayment} {
		stale, err := s.bookingRepo.ListStale(ctx, status, cutoff, limit)
		if err != nil {
			telemetry.RecordError(span, err)
			return expired, fmt.Errorf("failed to list stale bookings: %w", err)
		}

		for _, b := range stale {
			if ctx.Err() != nil {
				return expired, ctx.Err()
			}
			ok, err := s.expire(ctx, b)
			if err != nil {
				s.log.WarnContext(ctx, "failed to expire booking",
					zap.String("booking_id", b.ID), zap.Error(err))
				continue
			}
			if ok {
				expired++
				metrics.RecordBookingExpired(status.String())
			}
		}
	}

	span.SetAttributes(attribute.Int("expired", expired))
	return expired, nil
}

// expire gives the latest payment attempt of b one last verification and
// then moves b to a status that releases its capacity. It reports false when
// b settled on its own or a checkout is still being opened.
func (s *expiryService) expire(ctx context.Context, b *domain.Booking) (bool, error) {
	status := b.Status

	attempt, err := s.paymentRepo.GetLatestByBooking(ctx, b.ID)
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		attempt = nil
	case err != nil:
		return false, err
	}

	if attempt != nil && (attempt.Status.IsOpen() || status == domain.BookingStatusAwaitingPayment) {
		res, err := s.payments.VerifyPayment(ctx, attempt.Reference)
		if err != nil {
			return false, err
		}
		status = res.Booking.Status

		switch res.Attempt.Status {
		case domain.PaymentStatusInitiated:
			return false, nil
		case domain.PaymentStatusPending:
			won, err := s.paymentRepo.CompareAndSetStatus(ctx, attempt.Reference, domain.PaymentStatusPending, domain.PaymentStatusFailed, "checkout expired")
			if err != nil {
				return false, fmt.Errorf("failed to expire payment attempt: %w", err)
			}
			if !won {
				// settled while we looked; apply whatever it settled to
				_, err := s.payments.VerifyPayment(ctx, attempt.Reference)
				return false, err
			}
		}
	}

	var event domain.BookingEvent
	switch status {
	case domain.BookingStatusPending:
		event = domain.EventUserCancelled
	case domain.BookingStatusAwaitingPayment:
		event = domain.EventPaymentFailed
	default:
		return false, nil
	}

	if _, err := s.bookings.Transition(ctx, b.ID, event); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return false, nil
		}
		return false, err
	}

	s.log.InfoContext(ctx, "booking expired",
		zap.String("booking_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("from", status.String()),
		zap.Int("quantity", b.Quantity))
	return true, nil
}
