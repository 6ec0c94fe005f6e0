package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// NotificationService defines the interface for the in-app notification store
type NotificationService interface {
	// Create appends a notification for userID
	Create(ctx context.Context, userID string, data domain.NotificationData, title, message string) (*domain.Notification, error)

	// List returns a page of a user's notifications, newest first
	List(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*domain.Notification, int64, error)

	// MarkRead marks one of the user's notifications as read
	MarkRead(ctx context.Context, id, userID string) error

	// MarkAllRead marks every unread notification of the user as read
	MarkAllRead(ctx context.Context, userID string) (int64, error)

	// Stats returns the user's unread and total counts
	Stats(ctx context.Context, userID string) (*domain.NotificationStats, error)

	// Delete removes one of the user's notifications
	Delete(ctx context.Context, id, userID string) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

func (s *notificationService) Create(ctx context.Context, userID string, data domain.NotificationData, title, message string) (*domain.Notification, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.create")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID))

	n, err := domain.NewNotification(userID, data, title, message)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("type", string(n.Type)))

	if err := s.repo.Create(ctx, n); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	metrics.RecordNotificationCreated(string(n.Type))
	return n, nil
}

func (s *notificationService) List(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*domain.Notification, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.list")
	defer span.End()

	if userID == "" {
		return nil, 0, domain.ErrInvalidUserID
	}
	page, pageSize = normalizePage(page, pageSize)

	items, total, err := s.repo.List(ctx, userID, pageSize, (page-1)*pageSize, unreadOnly)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, 0, err
	}
	return items, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.mark_read")
	defer span.End()
	span.SetAttributes(attribute.String("notification_id", id))

	if userID == "" {
		return domain.ErrInvalidUserID
	}
	if uuid.Validate(id) != nil {
		return domain.ErrNotificationNotFound
	}
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.mark_all_read")
	defer span.End()

	if userID == "" {
		return 0, domain.ErrInvalidUserID
	}
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("updated", n))
	return n, nil
}

func (s *notificationService) Stats(ctx context.Context, userID string) (*domain.NotificationStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.stats")
	defer span.End()

	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	return s.repo.Stats(ctx, userID)
}

func (s *notificationService) Delete(ctx context.Context, id, userID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.notification.delete")
	defer span.End()
	span.SetAttributes(attribute.String("notification_id", id))

	if userID == "" {
		return domain.ErrInvalidUserID
	}
	if uuid.Validate(id) != nil {
		return domain.ErrNotificationNotFound
	}
	return s.repo.Delete(ctx, id, userID)
}
