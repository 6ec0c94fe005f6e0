package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/eventbus"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// maxTransitionAttempts bounds re-reads after a lost compare-and-set
const maxTransitionAttempts = 5

// BookingService defines the interface for booking business logic
type BookingService interface {
	// Reserve holds capacity and creates a PENDING booking
	Reserve(ctx context.Context, userID, resourceID string, quantity int) (*domain.Booking, error)

	// Transition applies a ledger event to a booking
	Transition(ctx context.Context, bookingID string, event domain.BookingEvent) (*domain.Booking, error)

	// GetBooking retrieves a booking owned by userID
	GetBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error)

	// ListUserBookings retrieves a page of a user's bookings
	ListUserBookings(ctx context.Context, userID string, page, pageSize int) ([]*domain.Booking, int64, error)

	// Cancel cancels a booking on behalf of its owner
	Cancel(ctx context.Context, bookingID, userID string) (*domain.Booking, error)
}

// BookingServiceConfig contains configuration for booking service
type BookingServiceConfig struct {
	MaxQuantity     int
	DefaultCurrency string
}

// bookingService implements BookingService
type bookingService struct {
	bookingRepo  repository.BookingRepository
	resourceRepo repository.ResourceRepository
	counter      repository.CapacityCounter
	syncer       CapacitySyncer
	bus          eventbus.Publisher
	maxQuantity  int
	currency     string
	log          *logger.Logger
}

// NewBookingService creates a new booking service. syncer may be nil when
// the counter never reports ErrCapacityNotInitialized.
func NewBookingService(
	bookingRepo repository.BookingRepository,
	resourceRepo repository.ResourceRepository,
	counter repository.CapacityCounter,
	syncer CapacitySyncer,
	bus eventbus.Publisher,
	cfg *BookingServiceConfig,
) BookingService {
	maxQuantity := 20
	currency := domain.DefaultCurrency
	if cfg != nil {
		if cfg.MaxQuantity > 0 {
			maxQuantity = cfg.MaxQuantity
		}
		if cfg.DefaultCurrency != "" {
			currency = cfg.DefaultCurrency
		}
	}
	if bus == nil {
		bus = noopBus{}
	}
	return &bookingService{
		bookingRepo:  bookingRepo,
		resourceRepo: resourceRepo,
		counter:      counter,
		syncer:       syncer,
		bus:          bus,
		maxQuantity:  maxQuantity,
		currency:     currency,
		log:          logger.Get().Named("booking-service"),
	}
}

// Reserve holds capacity and creates a PENDING booking
func (s *bookingService) Reserve(ctx context.Context, userID, resourceID string, quantity int) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.reserve")
	defer span.End()

	if err := domain.ValidateReserveInput(userID, resourceID, quantity); err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordReservation("invalid")
		return nil, err
	}
	if quantity > s.maxQuantity {
		span.SetStatus(codes.Error, "quantity above limit")
		metrics.RecordReservation("invalid")
		return nil, fmt.Errorf("%w: at most %d per booking", domain.ErrInvalidQuantity, s.maxQuantity)
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("resource_id", resourceID),
		attribute.Int("quantity", quantity),
	)

	resource, err := s.resourceRepo.GetByID(ctx, resourceID)
	if err != nil {
		telemetry.RecordError(span, err)
		metrics.RecordReservation("error")
		return nil, err
	}
	if resource.Currency == "" {
		resource.Currency = s.currency
	}

	quote, err := domain.Price(resource, quantity)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	bookingID := uuid.New().String()
	span.SetAttributes(attribute.String("booking_id", bookingID))

	remaining, err := s.counter.Reserve(ctx, bookingID, resourceID, quantity)
	if errors.Is(err, repository.ErrCapacityNotInitialized) && s.syncer != nil {
		span.AddEvent("capacity_not_loaded_syncing")
		if syncErr := s.syncer.Sync(ctx, resourceID); syncErr != nil {
			telemetry.RecordError(span, syncErr)
			metrics.RecordReservation("error")
			return nil, fmt.Errorf("failed to load capacity: %w", syncErr)
		}
		span.AddEvent("capacity_synced_retrying")
		remaining, err = s.counter.Reserve(ctx, bookingID, resourceID, quantity)
	}
	if err != nil {
		if errors.Is(err, domain.ErrCapacityExceeded) {
			span.SetStatus(codes.Error, "insufficient capacity")
			span.SetAttributes(attribute.Int64("available", remaining))
			metrics.RecordReservation("capacity_exceeded")
			return nil, err
		}
		telemetry.RecordError(span, err)
		metrics.RecordReservation("error")
		return nil, fmt.Errorf("failed to reserve capacity: %w", err)
	}
	span.SetAttributes(attribute.Int64("remaining", remaining))

	booking, err := domain.NewBooking(bookingID, userID, resourceID, quantity, quote)
	if err != nil {
		s.compensate(ctx, bookingID)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordReservation("invalid")
		return nil, err
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		s.compensate(ctx, bookingID)
		telemetry.RecordError(span, err)
		metrics.RecordReservation("error")
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.publish(ctx, booking)
	metrics.RecordReservation("success")
	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// compensate returns a hold whose booking could not be persisted
func (s *bookingService) compensate(ctx context.Context, bookingID string) {
	if _, err := s.counter.Release(context.WithoutCancel(ctx), bookingID); err != nil {
		s.log.ErrorContext(ctx, "failed to release capacity after failed reserve",
			zap.String("booking_id", bookingID), zap.Error(err))
	}
}

// Transition applies event by compare-and-set on the stored status. A lost
// race re-reads the booking and evaluates the event again.
func (s *bookingService) Transition(ctx context.Context, bookingID string, event domain.BookingEvent) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("event", string(event)),
	)

	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		booking, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		next, changed, err := domain.NextStatus(booking.Status, event)
		if err != nil {
			span.SetStatus(codes.Error, "invalid transition")
			span.SetAttributes(attribute.String("current_status", booking.Status.String()))
			metrics.RecordTransition(string(event), "rejected")
			return booking, err
		}

		if !changed {
			// repeats re-issue the release so an interrupted one converges
			if next.ReleasesCapacity() {
				s.release(ctx, booking.ID)
			}
			metrics.RecordTransition(string(event), "noop")
			span.AddEvent("transition_repeated")
			return booking, nil
		}

		now := time.Now().UTC()
		ok, err := s.bookingRepo.CompareAndSetStatus(ctx, booking.ID, booking.Status, next, now)
		if err != nil {
			telemetry.RecordError(span, err)
			metrics.RecordTransition(string(event), "error")
			return nil, fmt.Errorf("failed to update booking status: %w", err)
		}
		if !ok {
			span.AddEvent("status_changed_concurrently")
			continue
		}

		booking.Apply(next, now)
		if next.ReleasesCapacity() {
			s.release(ctx, booking.ID)
		}
		s.publish(ctx, booking)

		metrics.RecordTransition(string(event), "applied")
		span.SetAttributes(attribute.String("status", next.String()))
		span.SetStatus(codes.Ok, "")
		return booking, nil
	}

	span.SetStatus(codes.Error, "too many concurrent updates")
	metrics.RecordTransition(string(event), "conflict")
	return nil, fmt.Errorf("%w: booking %s kept changing", domain.ErrInvalidTransition, bookingID)
}

// release returns the booking's capacity. Failures are logged; the next
// repeat of the releasing event retries it.
func (s *bookingService) release(ctx context.Context, bookingID string) {
	released, err := s.counter.Release(context.WithoutCancel(ctx), bookingID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to release capacity",
			zap.String("booking_id", bookingID), zap.Error(err))
		return
	}
	if released {
		s.log.Debug("capacity released", zap.String("booking_id", bookingID))
	}
}

func (s *bookingService) publish(ctx context.Context, booking *domain.Booking) {
	if err := s.bus.Publish(ctx, domain.NewBookingEvent(booking)); err != nil {
		s.log.WarnContext(ctx, "failed to publish booking event",
			zap.String("booking_id", booking.ID),
			zap.String("status", booking.Status.String()),
			zap.Error(err))
	}
}

// GetBooking retrieves a booking owned by userID
func (s *bookingService) GetBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.get")
	defer span.End()
	span.SetAttributes(attribute.String("booking_id", bookingID))

	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if uuid.Validate(bookingID) != nil {
		return nil, domain.ErrBookingNotFound
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, domain.ErrBookingNotFound) {
			telemetry.RecordError(span, err)
		}
		return nil, err
	}

	// someone else's booking is reported as missing
	if !booking.BelongsToUser(userID) {
		return nil, domain.ErrBookingNotFound
	}
	return booking, nil
}

// ListUserBookings retrieves a page of a user's bookings
func (s *bookingService) ListUserBookings(ctx context.Context, userID string, page, pageSize int) ([]*domain.Booking, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.list")
	defer span.End()

	if userID == "" {
		return nil, 0, domain.ErrInvalidUserID
	}
	page, pageSize = normalizePage(page, pageSize)

	bookings, total, err := s.bookingRepo.ListByUser(ctx, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, 0, err
	}
	return bookings, total, nil
}

// Cancel cancels a booking on behalf of its owner
func (s *bookingService) Cancel(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, booking.ID, domain.EventUserCancelled)
}

// normalizePage applies the default page size and its upper bound
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

type noopBus struct{}

func (noopBus) Publish(ctx context.Context, event domain.Event) error { return nil }
