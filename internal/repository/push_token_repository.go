package repository

import (
	"context"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// PushTokenRepository stores at most one live push token per user
type PushTokenRepository interface {
	// Upsert replaces the user's token
	Upsert(ctx context.Context, token *domain.PushToken) error

	// Get returns the user's token or domain.ErrPushTokenNotFound
	Get(ctx context.Context, userID string) (*domain.PushToken, error)

	// GetMany returns the tokens of the users that have one
	GetMany(ctx context.Context, userIDs []string) (map[string]*domain.PushToken, error)

	// Delete removes the user's token
	Delete(ctx context.Context, userID string) error

	// DeleteIfMatches removes the user's token only if it still equals token
	DeleteIfMatches(ctx context.Context, userID, token string) (bool, error)
}
