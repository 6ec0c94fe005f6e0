package repository

import (
	"context"
	"sync"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

type memoryHold struct {
	resourceID string
	quantity   int64
	released   bool
}

// MemoryCapacityCounter implements CapacityCounter with a mutex
type MemoryCapacityCounter struct {
	available map[string]int64
	holds     map[string]*memoryHold
	mu        sync.Mutex
}

// NewMemoryCapacityCounter creates a new in-memory capacity counter
func NewMemoryCapacityCounter() *MemoryCapacityCounter {
	return &MemoryCapacityCounter{
		available: make(map[string]int64),
		holds:     make(map[string]*memoryHold),
	}
}

// Reserve holds qty units of resourceID for bookingID
func (c *MemoryCapacityCounter) Reserve(ctx context.Context, bookingID, resourceID string, qty int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	available, ok := c.available[resourceID]
	if !ok {
		return 0, ErrCapacityNotInitialized
	}
	if _, exists := c.holds[bookingID]; exists {
		return available, ErrHoldExists
	}
	if available < int64(qty) {
		return available, domain.ErrCapacityExceeded
	}
	c.available[resourceID] = available - int64(qty)
	c.holds[bookingID] = &memoryHold{resourceID: resourceID, quantity: int64(qty)}
	return c.available[resourceID], nil
}

// Release returns the hold of bookingID once
func (c *MemoryCapacityCounter) Release(ctx context.Context, bookingID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hold, ok := c.holds[bookingID]
	if !ok || hold.released {
		return false, nil
	}
	hold.released = true
	c.available[hold.resourceID] += hold.quantity
	return true, nil
}

// Available returns the remaining capacity of a resource
func (c *MemoryCapacityCounter) Available(ctx context.Context, resourceID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	available, ok := c.available[resourceID]
	if !ok {
		return 0, ErrCapacityNotInitialized
	}
	return available, nil
}

// SetCapacity overwrites the remaining capacity of a resource
func (c *MemoryCapacityCounter) SetCapacity(ctx context.Context, resourceID string, available int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.available[resourceID] = available
	return nil
}

// InitCapacity sets the remaining capacity only if none is set yet
func (c *MemoryCapacityCounter) InitCapacity(ctx context.Context, resourceID string, available int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.available[resourceID]; ok {
		return false, nil
	}
	c.available[resourceID] = available
	return true, nil
}

var _ CapacityCounter = (*MemoryCapacityCounter)(nil)
