package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// MemoryNotificationRepository implements NotificationRepository in memory
type MemoryNotificationRepository struct {
	notifications map[string]*domain.Notification
	mu            sync.RWMutex
}

// NewMemoryNotificationRepository creates a new in-memory notification repository
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{notifications: make(map[string]*domain.Notification)}
}

// Create appends a notification
func (r *MemoryNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *n
	r.notifications[n.ID] = &c
	return nil
}

// List returns a page of a user's notifications, newest first
func (r *MemoryNotificationRepository) List(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*domain.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*domain.Notification
	for _, n := range r.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		c := *n
		all = append(all, &c)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, limit, offset), int64(len(all)), nil
}

// MarkRead flips is_read on a notification owned by userID
func (r *MemoryNotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return domain.ErrNotificationNotFound
	}
	n.IsRead = true
	return nil
}

// MarkAllRead flips every unread notification of userID
func (r *MemoryNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var flipped int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			flipped++
		}
	}
	return flipped, nil
}

// Stats returns unread and total counts under one lock
func (r *MemoryNotificationRepository) Stats(ctx context.Context, userID string) (*domain.NotificationStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &domain.NotificationStats{}
	for _, n := range r.notifications {
		if n.UserID != userID {
			continue
		}
		stats.Total++
		if !n.IsRead {
			stats.Unread++
		}
	}
	return stats, nil
}

// Delete removes a notification owned by userID
func (r *MemoryNotificationRepository) Delete(ctx context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return domain.ErrNotificationNotFound
	}
	delete(r.notifications, id)
	return nil
}

var _ NotificationRepository = (*MemoryNotificationRepository)(nil)
