package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/gateway"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// PaymentService defines the interface for payment business logic
type PaymentService interface {
	// InitPayment opens a provider checkout for a PENDING booking
	InitPayment(ctx context.Context, bookingID, userID string, opts *InitPaymentOptions) (*domain.PaymentAttempt, error)

	// VerifyPayment asks the provider for the outcome of an attempt and settles the booking
	VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error)

	// HandleWebhook verifies a provider callback and re-verifies the referenced attempt
	HandleWebhook(ctx context.Context, providerName string, payload []byte, headers http.Header) (*VerifyResult, error)

	// ReconcileStale verifies open attempts untouched for longer than olderThan
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// InitPaymentOptions carries the optional customer details of a checkout
type InitPaymentOptions struct {
	Provider  string
	ReturnURL string
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// VerifyResult is the state of an attempt and its booking after verification
type VerifyResult struct {
	Attempt *domain.PaymentAttempt
	Booking *domain.Booking
}

const (
	// DefaultInitiatedTimeout is how long an attempt may sit in INITIATED
	// before verification fails it
	DefaultInitiatedTimeout = 2 * time.Minute

	// DefaultVerifyTimeout bounds one shared verification
	DefaultVerifyTimeout = 30 * time.Second
)

// PaymentServiceConfig contains configuration for payment service
type PaymentServiceConfig struct {
	DefaultProvider  string
	ReturnURL        string
	CallbackURL      string
	InitiatedTimeout time.Duration
	VerifyTimeout    time.Duration
	CheckoutTTL      time.Duration
}

// paymentService implements PaymentService
type paymentService struct {
	paymentRepo      repository.PaymentRepository
	bookings         BookingService
	providers        map[string]gateway.Provider
	defaultProvider  string
	returnURL        string
	callbackURL      string
	initiatedTimeout time.Duration
	verifyTimeout    time.Duration
	checkoutTTL      time.Duration
	verifyGroup      singleflight.Group
	now              func() time.Time
	log              *logger.Logger
}

// NewPaymentService creates a new payment service. The first provider is the
// default unless cfg names one.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	bookings BookingService,
	providers []gateway.Provider,
	cfg *PaymentServiceConfig,
) PaymentService {
	s := &paymentService{
		paymentRepo:      paymentRepo,
		bookings:         bookings,
		providers:        make(map[string]gateway.Provider, len(providers)),
		initiatedTimeout: DefaultInitiatedTimeout,
		verifyTimeout:    DefaultVerifyTimeout,
		now:              time.Now,
		log:              logger.Get().Named("payment-service"),
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
		if s.defaultProvider == "" {
			s.defaultProvider = p.Name()
		}
	}
	if cfg != nil {
		if _, ok := s.providers[cfg.DefaultProvider]; ok {
			s.defaultProvider = cfg.DefaultProvider
		}
		s.returnURL = cfg.ReturnURL
		s.callbackURL = cfg.CallbackURL
		if cfg.InitiatedTimeout > 0 {
			s.initiatedTimeout = cfg.InitiatedTimeout
		}
		if cfg.VerifyTimeout > 0 {
			s.verifyTimeout = cfg.VerifyTimeout
		}
		s.checkoutTTL = cfg.CheckoutTTL
	}
	return s
}

func (s *paymentService) provider(name string) (gateway.Provider, error) {
	if name == "" {
		name = s.defaultProvider
	}
	p, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, name)
	}
	return p, nil
}

// InitPayment opens a provider checkout for a PENDING booking
func (s *paymentService) InitPayment(ctx context.Context, bookingID, userID string, opts *InitPaymentOptions) (*domain.PaymentAttempt, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.init")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking_id", bookingID),
		attribute.String("user_id", userID),
	)

	if opts == nil {
		opts = &InitPaymentOptions{}
	}
	provider, err := s.provider(opts.Provider)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("provider", provider.Name()))

	booking, err := s.bookings.GetBooking(ctx, bookingID, userID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if _, err := s.paymentRepo.GetOpenByBooking(ctx, booking.ID); err == nil {
		span.SetStatus(codes.Error, "payment already in progress")
		return nil, domain.ErrPaymentAlreadyInProgress
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if booking.Status != domain.BookingStatusPending {
		span.SetStatus(codes.Error, "booking not payable")
		return nil, fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, booking.Status)
	}

	attempt := domain.NewPaymentAttempt(booking, provider.Name(), s.now())
	if err := s.paymentRepo.Create(ctx, attempt); err != nil {
		if !errors.Is(err, domain.ErrPaymentAlreadyInProgress) {
			telemetry.RecordError(span, err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("reference", attempt.Reference))

	returnURL := opts.ReturnURL
	if returnURL == "" {
		returnURL = s.returnURL
	}

	var expiresAt time.Time
	if s.checkoutTTL > 0 {
		expiresAt = s.now().Add(s.checkoutTTL)
	}

	start := time.Now()
	checkout, err := provider.InitCheckout(ctx, &gateway.CheckoutRequest{
		Reference:   attempt.Reference,
		BookingID:   booking.ID,
		UserID:      booking.UserID,
		Amount:      attempt.Amount,
		Currency:    attempt.Currency,
		Description: fmt.Sprintf("Booking %s", booking.ID),
		Email:       opts.Email,
		FirstName:   opts.FirstName,
		LastName:    opts.LastName,
		Phone:       opts.Phone,
		ReturnURL:   returnURL,
		CallbackURL: s.callbackURL,
		ExpiresAt:   expiresAt,
	})
	metrics.ObserveProvider(provider.Name(), "init_checkout", start)
	if err != nil {
		telemetry.RecordError(span, err)
		s.failAttempt(ctx, attempt.Reference, domain.PaymentStatusInitiated, err.Error())
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return nil, err
	}

	stored, err := s.storeCheckout(ctx, attempt.Reference, checkout)
	if err != nil {
		// the checkout URL never reached the customer, so nothing can be paid on it
		telemetry.RecordError(span, err)
		s.failAttempt(ctx, attempt.Reference, domain.PaymentStatusInitiated, "checkout not stored")
		return nil, fmt.Errorf("failed to store checkout: %w", err)
	}
	if !stored {
		span.SetStatus(codes.Error, "attempt expired")
		return nil, fmt.Errorf("%w: checkout expired before it was stored", domain.ErrProviderUnavailable)
	}
	attempt.Status = domain.PaymentStatusPending
	attempt.ProviderRef = checkout.ProviderRef
	attempt.CheckoutURL = checkout.CheckoutURL

	if _, err := s.bookings.Transition(ctx, booking.ID, domain.EventPaymentInitiated); err != nil {
		// the booking was cancelled while the checkout was opening
		telemetry.RecordError(span, err)
		s.failAttempt(ctx, attempt.Reference, domain.PaymentStatusPending, "booking no longer payable")
		return nil, err
	}

	s.log.InfoContext(ctx, "payment initiated",
		zap.String("booking_id", booking.ID),
		zap.String("reference", attempt.Reference),
		zap.String("provider", provider.Name()))
	span.SetStatus(codes.Ok, "")
	return attempt, nil
}

// storeCheckout moves the attempt to PENDING, retrying once outside the
// request context. It reports false when the attempt already left INITIATED.
func (s *paymentService) storeCheckout(ctx context.Context, reference string, checkout *gateway.Checkout) (bool, error) {
	stored, err := s.paymentRepo.MarkPending(ctx, reference, checkout.ProviderRef, checkout.CheckoutURL)
	if err == nil {
		return stored, nil
	}
	s.log.WarnContext(ctx, "retrying checkout store",
		zap.String("reference", reference), zap.Error(err))
	return s.paymentRepo.MarkPending(context.WithoutCancel(ctx), reference, checkout.ProviderRef, checkout.CheckoutURL)
}

func (s *paymentService) failAttempt(ctx context.Context, reference string, from domain.PaymentStatus, reason string) {
	if _, err := s.paymentRepo.CompareAndSetStatus(context.WithoutCancel(ctx), reference, from, domain.PaymentStatusFailed, reason); err != nil {
		s.log.ErrorContext(ctx, "failed to mark attempt failed",
			zap.String("reference", reference), zap.Error(err))
	}
}

// VerifyPayment settles the booking from the provider's view of the attempt.
// Concurrent calls for one reference share a single provider call, which is
// detached from the caller that started it and bounded by the verify timeout.
func (s *paymentService) VerifyPayment(ctx context.Context, reference string) (*VerifyResult, error) {
	ch := s.verifyGroup.DoChan(reference, func() (interface{}, error) {
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.verifyTimeout)
		defer cancel()
		return s.verify(vctx, reference)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*VerifyResult), nil
	}
}

func (s *paymentService) verify(ctx context.Context, reference string) (*VerifyResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.verify")
	defer span.End()
	span.SetAttributes(attribute.String("reference", reference))

	attempt, err := s.paymentRepo.GetByReference(ctx, reference)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("booking_id", attempt.BookingID),
		attribute.String("provider", attempt.Provider),
		attribute.String("attempt_status", string(attempt.Status)),
	)

	if attempt.Status.IsTerminal() {
		metrics.RecordVerification(attempt.Provider, "already_settled")
		return s.settle(ctx, attempt)
	}

	if attempt.Status == domain.PaymentStatusInitiated {
		return s.expireInitiated(ctx, attempt)
	}

	provider, err := s.provider(attempt.Provider)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := time.Now()
	status, err := provider.GetStatus(ctx, attempt.Reference, attempt.ProviderRef)
	metrics.ObserveProvider(provider.Name(), "get_status", start)
	if err != nil {
		telemetry.RecordError(span, err)
		metrics.RecordVerification(provider.Name(), "error")
		return nil, err
	}
	span.SetAttributes(attribute.String("provider_status", string(status.Status)))

	if !status.Status.IsTerminal() {
		metrics.RecordVerification(provider.Name(), "pending")
		return s.current(ctx, attempt)
	}

	won, err := s.paymentRepo.CompareAndSetStatus(ctx, attempt.Reference, domain.PaymentStatusPending, status.Status, status.Reason)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to update payment attempt: %w", err)
	}
	if won {
		attempt.Status = status.Status
		attempt.FailureReason = status.Reason
		metrics.RecordVerification(provider.Name(), string(status.Status))
	} else {
		// another verifier settled it first; use the stored outcome
		span.AddEvent("attempt_settled_concurrently")
		attempt, err = s.paymentRepo.GetByReference(ctx, reference)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}
	return s.settle(ctx, attempt)
}

// expireInitiated fails an attempt whose checkout was never stored once it is
// older than the initiated timeout. Its checkout URL was never handed out, so
// no payment can be in flight and the booking becomes payable again.
func (s *paymentService) expireInitiated(ctx context.Context, attempt *domain.PaymentAttempt) (*VerifyResult, error) {
	if s.now().Sub(attempt.UpdatedAt) < s.initiatedTimeout {
		// InitPayment may still be waiting on the provider
		metrics.RecordVerification(attempt.Provider, "pending")
		return s.current(ctx, attempt)
	}

	won, err := s.paymentRepo.CompareAndSetStatus(ctx, attempt.Reference, domain.PaymentStatusInitiated, domain.PaymentStatusFailed, "checkout never stored")
	if err != nil {
		return nil, fmt.Errorf("failed to expire payment attempt: %w", err)
	}
	if !won {
		attempt, err = s.paymentRepo.GetByReference(ctx, attempt.Reference)
		if err != nil {
			return nil, err
		}
		return s.current(ctx, attempt)
	}

	attempt.Status = domain.PaymentStatusFailed
	attempt.FailureReason = "checkout never stored"
	metrics.RecordVerification(attempt.Provider, "expired")
	s.log.WarnContext(ctx, "expired stranded payment attempt",
		zap.String("reference", attempt.Reference),
		zap.String("booking_id", attempt.BookingID))
	return s.current(ctx, attempt)
}

// settle applies the ledger event of a terminal attempt to its booking
func (s *paymentService) settle(ctx context.Context, attempt *domain.PaymentAttempt) (*VerifyResult, error) {
	event, ok := attempt.Status.LedgerEvent()
	if !ok {
		return s.current(ctx, attempt)
	}

	booking, err := s.bookings.Transition(ctx, attempt.BookingID, event)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) && booking != nil {
			// e.g. a success arriving after the user cancelled
			s.log.WarnContext(ctx, "payment outcome does not apply to booking",
				zap.String("reference", attempt.Reference),
				zap.String("attempt_status", string(attempt.Status)),
				zap.String("booking_status", booking.Status.String()))
			return &VerifyResult{Attempt: attempt, Booking: booking}, nil
		}
		return nil, err
	}
	return &VerifyResult{Attempt: attempt, Booking: booking}, nil
}

func (s *paymentService) current(ctx context.Context, attempt *domain.PaymentAttempt) (*VerifyResult, error) {
	booking, err := s.bookings.GetBooking(ctx, attempt.BookingID, attempt.UserID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Attempt: attempt, Booking: booking}, nil
}

// HandleWebhook verifies a provider callback and re-verifies the referenced attempt
func (s *paymentService) HandleWebhook(ctx context.Context, providerName string, payload []byte, headers http.Header) (*VerifyResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.webhook")
	defer span.End()
	span.SetAttributes(attribute.String("provider", providerName))

	provider, ok := s.providers[providerName]
	if !ok {
		span.SetStatus(codes.Error, "unknown provider")
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, providerName)
	}

	reference, err := provider.ParseWebhook(payload, headers)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordVerification(providerName, "rejected_webhook")
		return nil, err
	}
	span.SetAttributes(attribute.String("reference", reference))

	return s.VerifyPayment(ctx, reference)
}

// ReconcileStale verifies open attempts untouched for longer than olderThan
// and returns how many were verified without error
func (s *paymentService) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.reconcile")
	defer span.End()

	stale, err := s.paymentRepo.ListStale(ctx, s.now().UTC().Add(-olderThan), limit)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("failed to list stale attempts: %w", err)
	}
	span.SetAttributes(attribute.Int("stale_count", len(stale)))

	verified := 0
	for _, attempt := range stale {
		if ctx.Err() != nil {
			return verified, ctx.Err()
		}
		if _, err := s.VerifyPayment(ctx, attempt.Reference); err != nil {
			s.log.WarnContext(ctx, "failed to reconcile attempt",
				zap.String("reference", attempt.Reference), zap.Error(err))
			continue
		}
		verified++
	}
	return verified, nil
}
