package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/eventbus"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// MaxBroadcastRecipients bounds one broadcast request
const MaxBroadcastRecipients = 10000

// AnnouncementService publishes events raised outside the booking ledger,
// such as reviews posted on a place or system-wide broadcasts
type AnnouncementService interface {
	// ReviewPosted notifies the owner of the reviewed place
	ReviewPosted(ctx context.Context, ownerID string, review *domain.ReviewData) (*domain.Event, error)

	// Broadcast sends one system message to every recipient
	Broadcast(ctx context.Context, broadcastID string, recipients []string, data *domain.SystemData) (*domain.Event, error)
}

type announcementService struct {
	bus eventbus.Publisher
	now func() time.Time
}

// NewAnnouncementService creates a new announcement service
func NewAnnouncementService(bus eventbus.Publisher) AnnouncementService {
	return &announcementService{bus: bus, now: time.Now}
}

func (s *announcementService) ReviewPosted(ctx context.Context, ownerID string, review *domain.ReviewData) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.announcement.review_posted")
	defer span.End()

	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrInvalidUserID
	}
	if review == nil {
		return nil, domain.ValidateData(nil)
	}
	if err := domain.ValidateData(review); err != nil {
		return nil, err
	}
	// owners are not told about their own reviews
	if review.AuthorID == ownerID {
		return nil, nil
	}

	event := domain.NewReviewPostedEvent(ownerID, review, s.now().UTC())
	span.SetAttributes(attribute.String("event_id", event.ID))
	if err := s.bus.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to publish review event: %w", err)
	}
	return &event, nil
}

func (s *announcementService) Broadcast(ctx context.Context, broadcastID string, recipients []string, data *domain.SystemData) (*domain.Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.announcement.broadcast")
	defer span.End()

	if strings.TrimSpace(broadcastID) == "" {
		return nil, fmt.Errorf("%w: broadcast id is required", domain.ErrValidation)
	}
	if data == nil {
		return nil, domain.ValidateData(nil)
	}
	if err := domain.ValidateData(data); err != nil {
		return nil, err
	}

	unique := make([]string, 0, len(recipients))
	seen := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		unique = append(unique, r)
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrValidation)
	}
	if len(unique) > MaxBroadcastRecipients {
		return nil, fmt.Errorf("%w: at most %d recipients per broadcast", domain.ErrValidation, MaxBroadcastRecipients)
	}

	event := domain.NewBroadcastEvent(broadcastID, unique, data, s.now().UTC())
	span.SetAttributes(
		attribute.String("event_id", event.ID),
		attribute.Int("recipients", len(unique)),
	)
	if err := s.bus.Publish(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to publish broadcast: %w", err)
	}
	return &event, nil
}
