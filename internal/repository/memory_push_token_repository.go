package repository

import (
	"context"
	"sync"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// MemoryPushTokenRepository implements PushTokenRepository in memory
type MemoryPushTokenRepository struct {
	tokens map[string]*domain.PushToken
	mu     sync.RWMutex
}

// NewMemoryPushTokenRepository creates a new in-memory push token repository
func NewMemoryPushTokenRepository() *MemoryPushTokenRepository {
	return &MemoryPushTokenRepository{tokens: make(map[string]*domain.PushToken)}
}

func (r *MemoryPushTokenRepository) Upsert(ctx context.Context, token *domain.PushToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *token
	r.tokens[token.UserID] = &c
	return nil
}

func (r *MemoryPushTokenRepository) Get(ctx context.Context, userID string) (*domain.PushToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[userID]
	if !ok {
		return nil, domain.ErrPushTokenNotFound
	}
	c := *t
	return &c, nil
}

func (r *MemoryPushTokenRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*domain.PushToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*domain.PushToken, len(userIDs))
	for _, id := range userIDs {
		if t, ok := r.tokens[id]; ok {
			c := *t
			out[id] = &c
		}
	}
	return out, nil
}

func (r *MemoryPushTokenRepository) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, userID)
	return nil
}

func (r *MemoryPushTokenRepository) DeleteIfMatches(ctx context.Context, userID, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[userID]
	if !ok || t.Token != token {
		return false, nil
	}
	delete(r.tokens, userID)
	return true, nil
}

var _ PushTokenRepository = (*MemoryPushTokenRepository)(nil)
