package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryEventDedupRepository implements EventDedupRepository with expiring entries
type MemoryEventDedupRepository struct {
	claims map[string]time.Time
	now    func() time.Time
	mu     sync.Mutex
}

// NewMemoryEventDedupRepository creates a new in-memory dedup store
func NewMemoryEventDedupRepository() *MemoryEventDedupRepository {
	return &MemoryEventDedupRepository{
		claims: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Claim records key for ttl and reports whether this call was first
func (r *MemoryEventDedupRepository) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if exp, ok := r.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	r.claims[key] = now.Add(ttl)

	// opportunistic sweep keeps the map bounded
	if len(r.claims)%1024 == 0 {
		for k, exp := range r.claims {
			if !now.Before(exp) {
				delete(r.claims, k)
			}
		}
	}
	return true, nil
}

// Forget drops a claim
func (r *MemoryEventDedupRepository) Forget(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, key)
	return nil
}

var _ EventDedupRepository = (*MemoryEventDedupRepository)(nil)
