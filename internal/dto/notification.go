package dto

import (
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// NotificationListQuery is the query of GET /notifications
type NotificationListQuery struct {
	PageQuery
	UnreadOnly bool `form:"unread_only"`
}

// NotificationResponse represents a notification in API response
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      string                  `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Data      domain.NotificationData `json:"data,omitempty"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// FromNotifications converts a page of notifications
func FromNotifications(items []*domain.Notification) []*NotificationResponse {
	out := make([]*NotificationResponse, 0, len(items))
	for _, n := range items {
		out = append(out, &NotificationResponse{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			Data:      n.Data,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}

// MarkAllReadResponse reports how many notifications were flipped
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

// RegisterPushTokenRequest represents request to register a device token
type RegisterPushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// PushTokenResponse represents the registered token
type PushTokenResponse struct {
	Token        string    `json:"token"`
	RegisteredAt time.Time `json:"registered_at"`
}
