package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// MemoryBookingRepository implements BookingRepository in memory
type MemoryBookingRepository struct {
	bookings map[string]*domain.Booking
	byUser   map[string][]string
	mu       sync.RWMutex
}

// NewMemoryBookingRepository creates a new in-memory booking repository
func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings: make(map[string]*domain.Booking),
		byUser:   make(map[string][]string),
	}
}

// Create creates a new booking record
func (r *MemoryBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[booking.ID]; exists {
		return ErrDuplicateBooking
	}
	b := *booking
	r.bookings[booking.ID] = &b
	r.byUser[booking.UserID] = append(r.byUser[booking.UserID], booking.ID)
	return nil
}

// GetByID retrieves a booking by its ID
func (r *MemoryBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	c := *b
	return &c, nil
}

// ListByUser returns a page of a user's bookings, newest first
func (r *MemoryBookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byUser[userID]
	all := make([]*domain.Booking, 0, len(ids))
	for _, id := range ids {
		c := *r.bookings[id]
		all = append(all, &c)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return paginate(all, limit, offset), int64(len(all)), nil
}

// CompareAndSetStatus moves the booking from one status to another
func (r *MemoryBookingRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return false, domain.ErrBookingNotFound
	}
	if b.Status != from {
		return false, nil
	}
	b.Apply(to, at)
	return true, nil
}

// ListStale returns bookings in status last updated before olderThan, oldest first
func (r *MemoryBookingRepository) ListStale(ctx context.Context, status domain.BookingStatus, olderThan time.Time, limit int) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*domain.Booking
	for _, b := range r.bookings {
		if b.Status == status && b.UpdatedAt.Before(olderThan) {
			c := *b
			stale = append(stale, &c)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}

func (r *MemoryBookingRepository) heldQuantity(resourceID string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var held int64
	for _, b := range r.bookings {
		if b.ResourceID == resourceID && !b.Status.ReleasesCapacity() {
			held += int64(b.Quantity)
		}
	}
	return held
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)
