package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// MemoryPaymentRepository implements PaymentRepository using in-memory storage.
// The open-attempt invariant is enforced under the mutex.
type MemoryPaymentRepository struct {
	attempts  map[string]*domain.PaymentAttempt // reference -> attempt
	openByBkg map[string]string                 // bookingID -> reference of open attempt
	mu        sync.RWMutex
}

// NewMemoryPaymentRepository creates a new in-memory payment repository
func NewMemoryPaymentRepository() *MemoryPaymentRepository {
	return &MemoryPaymentRepository{
		attempts:  make(map[string]*domain.PaymentAttempt),
		openByBkg: make(map[string]string),
	}
}

// Create stores a new attempt
func (r *MemoryPaymentRepository) Create(ctx context.Context, attempt *domain.PaymentAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.openByBkg[attempt.BookingID]; exists && attempt.Status.IsOpen() {
		return domain.ErrPaymentAlreadyInProgress
	}
	if _, exists := r.attempts[attempt.Reference]; exists {
		return domain.ErrPaymentAlreadyInProgress
	}

	a := *attempt
	r.attempts[a.Reference] = &a
	if a.Status.IsOpen() {
		r.openByBkg[a.BookingID] = a.Reference
	}
	return nil
}

// GetByReference retrieves an attempt by reference
func (r *MemoryPaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.attempts[reference]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	c := *a
	return &c, nil
}

// GetOpenByBooking returns the open attempt of a booking
func (r *MemoryPaymentRepository) GetOpenByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ref, ok := r.openByBkg[bookingID]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	c := *r.attempts[ref]
	return &c, nil
}

// GetLatestByBooking returns the most recently created attempt of a booking
func (r *MemoryPaymentRepository) GetLatestByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.PaymentAttempt
	for _, a := range r.attempts {
		if a.BookingID != bookingID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, domain.ErrPaymentNotFound
	}
	c := *latest
	return &c, nil
}

// MarkPending moves INITIATED to PENDING with the checkout details
func (r *MemoryPaymentRepository) MarkPending(ctx context.Context, reference, providerRef, checkoutURL string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attempts[reference]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if a.Status != domain.PaymentStatusInitiated {
		return false, nil
	}
	a.Status = domain.PaymentStatusPending
	a.ProviderRef = providerRef
	a.CheckoutURL = checkoutURL
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

// CompareAndSetStatus moves an attempt from one status to another
func (r *MemoryPaymentRepository) CompareAndSetStatus(ctx context.Context, reference string, from, to domain.PaymentStatus, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attempts[reference]
	if !ok {
		return false, domain.ErrPaymentNotFound
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	if reason != "" {
		a.FailureReason = reason
	}
	a.UpdatedAt = time.Now().UTC()
	if !to.IsOpen() && r.openByBkg[a.BookingID] == reference {
		delete(r.openByBkg, a.BookingID)
	}
	return true, nil
}

// ListStale returns open attempts last updated before olderThan, oldest first
func (r *MemoryPaymentRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.PaymentAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*domain.PaymentAttempt
	for _, a := range r.attempts {
		if a.Status.IsOpen() && a.UpdatedAt.Before(olderThan) {
			c := *a
			stale = append(stale, &c)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

var _ PaymentRepository = (*MemoryPaymentRepository)(nil)
