package repository

import (
	"context"
	"sync"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// MemoryResourceRepository implements ResourceRepository in memory
type MemoryResourceRepository struct {
	resources map[string]*domain.Resource
	bookings  BookingRepository
	mu        sync.RWMutex
}

// NewMemoryResourceRepository creates a new in-memory resource repository.
// bookings may be nil, in which case HeldQuantity is always 0.
func NewMemoryResourceRepository(bookings BookingRepository) *MemoryResourceRepository {
	return &MemoryResourceRepository{
		resources: make(map[string]*domain.Resource),
		bookings:  bookings,
	}
}

// GetByID retrieves a resource by its ID
func (r *MemoryResourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[id]
	if !ok {
		return nil, domain.ErrResourceNotFound
	}
	c := *res
	return &c, nil
}

// Save inserts or updates a resource
func (r *MemoryResourceRepository) Save(ctx context.Context, resource *domain.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *resource
	r.resources[resource.ID] = &c
	return nil
}

// HeldQuantity sums bookings of the resource that still hold capacity
func (r *MemoryResourceRepository) HeldQuantity(ctx context.Context, resourceID string) (int64, error) {
	mem, ok := r.bookings.(*MemoryBookingRepository)
	if !ok {
		return 0, nil
	}
	return mem.heldQuantity(resourceID), nil
}

var _ ResourceRepository = (*MemoryResourceRepository)(nil)
