package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/internal/push"
	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultDedupTTL is how long a handled event id is remembered
const DefaultDedupTTL = 24 * time.Hour

// Notifier turns domain events into in-app notifications and push jobs.
// It is subscribed to the event bus.
type Notifier struct {
	notifications NotificationService
	dedup         repository.EventDedupRepository
	queue         push.Queue
	dedupTTL      time.Duration
	log           *logger.Logger
}

// NewNotifier creates a new notifier. queue may be nil to disable push.
func NewNotifier(notifications NotificationService, dedup repository.EventDedupRepository, queue push.Queue, dedupTTL time.Duration) *Notifier {
	if dedupTTL <= 0 {
		dedupTTL = DefaultDedupTTL
	}
	return &Notifier{
		notifications: notifications,
		dedup:         dedup,
		queue:         queue,
		dedupTTL:      dedupTTL,
		log:           logger.Get().Named("notifier"),
	}
}

// Handle creates one notification per recipient of event and enqueues a
// single push job for all of them. An event published again under the same
// id is ignored per recipient, so repeated publishing yields one notification each.
func (n *Notifier) Handle(ctx context.Context, event domain.Event) error {
	ctx, span := telemetry.StartSpan(ctx, "service.notifier.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("event_id", event.ID),
		attribute.String("kind", string(event.Kind)),
	)

	title, message, ok := renderEvent(event)
	if !ok {
		return nil
	}

	recipients := []string{event.UserID}
	if event.IsBroadcast() {
		recipients = event.Recipients
	}
	span.SetAttributes(attribute.Int("recipients", len(recipients)))

	var (
		errs     []error
		messages []domain.PushMessage
	)
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		key := event.DedupKey(userID)

		first, err := n.dedup.Claim(ctx, key, n.dedupTTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to claim %s: %w", key, err))
			continue
		}
		if !first {
			n.log.Debug("duplicate event ignored", zap.String("key", key))
			continue
		}

		if _, err := n.notifications.Create(ctx, userID, event.Payload, title, message); err != nil {
			// the bus does not redeliver; free the key so a retried publish of
			// this event, such as a repeated broadcast request, can create it
			if ferr := n.dedup.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				n.log.ErrorContext(ctx, "failed to forget dedup key", zap.String("key", key), zap.Error(ferr))
			}
			errs = append(errs, fmt.Errorf("failed to create notification for %s: %w", userID, err))
			continue
		}

		messages = append(messages, domain.PushMessage{
			UserID: userID,
			Title:  title,
			Body:   message,
			Data:   event.Payload.PushPayload(),
		})
	}

	if len(messages) > 0 && n.queue != nil {
		job := &domain.PushJob{
			ID:         uuid.New().String(),
			EventID:    event.ID,
			Messages:   messages,
			EnqueuedAt: time.Now().UTC(),
		}
		if err := n.queue.Enqueue(ctx, job); err != nil {
			metrics.RecordPushDropped("enqueue_failed", len(messages))
			n.log.ErrorContext(ctx, "failed to enqueue push job",
				zap.String("event_id", event.ID),
				zap.Int("messages", len(messages)),
				zap.Error(err))
		}
	}

	return errors.Join(errs...)
}

// renderEvent returns the user-facing text of an event. Events without text
// produce no notification.
func renderEvent(event domain.Event) (title, message string, ok bool) {
	if event.Payload == nil {
		return "", "", false
	}
	switch event.Kind {
	case domain.EventKindBookingCreated:
		return "Booking received", "Your booking is reserved. Complete the payment to confirm it.", true
	case domain.EventKindBookingConfirmed:
		return "Booking confirmed", "Your payment was received and your booking is confirmed.", true
	case domain.EventKindBookingFailed:
		return "Payment failed", "Your payment did not go through and the booking was released.", true
	case domain.EventKindBookingCancelled:
		return "Booking cancelled", "Your booking was cancelled.", true
	case domain.EventKindBookingRefunded:
		return "Booking refunded", "Your booking was refunded.", true
	case domain.EventKindReviewPosted:
		if r, isReview := event.Payload.(*domain.ReviewData); isReview {
			return "New review", fmt.Sprintf("Your place received a %d-star review.", r.Rating), true
		}
		return "New review", "Your place received a new review.", true
	case domain.EventKindSystemBroadcast:
		if d, isSystem := event.Payload.(*domain.SystemData); isSystem && d.Title != "" {
			return d.Title, d.Body, true
		}
		return "Announcement", "", true
	}
	return "", "", false
}
