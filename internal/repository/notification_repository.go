package repository

import (
	"context"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// NotificationRepository defines data access for in-app notifications
type NotificationRepository interface {
	// Create appends a notification
	Create(ctx context.Context, n *domain.Notification) error

	// List returns a page of a user's notifications, newest first, and the total count
	List(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*domain.Notification, int64, error)

	// MarkRead flips is_read on a notification owned by userID
	MarkRead(ctx context.Context, id, userID string) error

	// MarkAllRead flips every unread notification of userID and returns the number flipped
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	// Stats returns unread and total counts from one snapshot
	Stats(ctx context.Context, userID string) (*domain.NotificationStats, error)

	// Delete removes a notification owned by userID
	Delete(ctx context.Context, id, userID string) error
}
