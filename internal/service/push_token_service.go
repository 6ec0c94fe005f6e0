package service

import (
	"context"
	"strings"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// TokenValidator checks the format of a device token
type TokenValidator interface {
	IsValidToken(token string) bool
}

// PushTokenService defines the interface for the push token registry
type PushTokenService interface {
	// Register stores token as the user's live device token
	Register(ctx context.Context, userID, token string) error

	// Unregister removes the user's token
	Unregister(ctx context.Context, userID string) error

	// Get returns the user's token
	Get(ctx context.Context, userID string) (*domain.PushToken, error)

	// Prune removes the user's token only if it still equals the dead token
	Prune(ctx context.Context, userID, token string) (bool, error)
}

type pushTokenService struct {
	repo      repository.PushTokenRepository
	validator TokenValidator
}

// NewPushTokenService creates a new push token registry
func NewPushTokenService(repo repository.PushTokenRepository, validator TokenValidator) PushTokenService {
	return &pushTokenService{repo: repo, validator: validator}
}

func (s *pushTokenService) Register(ctx context.Context, userID, token string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.push_token.register")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidUserID
	}
	token = strings.TrimSpace(token)
	if !s.validator.IsValidToken(token) {
		return domain.ErrTokenInvalid
	}
	span.SetAttributes(attribute.String("user_id", userID))

	return s.repo.Upsert(ctx, &domain.PushToken{
		UserID:       userID,
		Token:        token,
		RegisteredAt: time.Now().UTC(),
	})
}

func (s *pushTokenService) Unregister(ctx context.Context, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.push_token.unregister")
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidUserID
	}
	return s.repo.Delete(ctx, userID)
}

func (s *pushTokenService) Get(ctx context.Context, userID string) (*domain.PushToken, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidUserID
	}
	return s.repo.Get(ctx, userID)
}

func (s *pushTokenService) Prune(ctx context.Context, userID, token string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.push_token.prune")
	defer span.End()

	pruned, err := s.repo.DeleteIfMatches(ctx, userID, token)
	if err != nil {
		telemetry.RecordError(span, err)
		return false, err
	}
	if pruned {
		metrics.RecordTokenPruned()
	}
	return pruned, nil
}
