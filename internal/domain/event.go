package domain

import (
	"fmt"
	"time"
)

// EventKind identifies a domain event published on the bus
type EventKind string

const (
	EventKindBookingCreated   EventKind = "BookingCreated"
	EventKindPaymentInitiated EventKind = "PaymentInitiated"
	EventKindBookingConfirmed EventKind = "BookingConfirmed"
	EventKindBookingFailed    EventKind = "BookingFailed"
	EventKindBookingCancelled EventKind = "BookingCancelled"
	EventKindBookingRefunded  EventKind = "BookingRefunded"
	EventKindReviewPosted     EventKind = "ReviewPosted"
	EventKindSystemBroadcast  EventKind = "SystemBroadcast"
)

// Event is a domain event. ID is deterministic so a re-published event
// carries the same identity as the original.
type Event struct {
	ID         string           `json:"id"`
	Kind       EventKind        `json:"kind"`
	UserID     string           `json:"user_id,omitempty"`
	Recipients []string         `json:"recipients,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
	Payload    NotificationData `json:"-"`
}

// BookingEventKind returns the event kind emitted when a booking enters status
func BookingEventKind(status BookingStatus) (EventKind, bool) {
	switch status {
	case BookingStatusPending:
		return EventKindBookingCreated, true
	case BookingStatusAwaitingPayment:
		return EventKindPaymentInitiated, true
	case BookingStatusConfirmed:
		return EventKindBookingConfirmed, true
	case BookingStatusFailed:
		return EventKindBookingFailed, true
	case BookingStatusCancelled:
		return EventKindBookingCancelled, true
	case BookingStatusRefunded:
		return EventKindBookingRefunded, true
	}
	return "", false
}

// NewBookingEvent builds the event for b having entered its current status
func NewBookingEvent(b *Booking) Event {
	kind, _ := BookingEventKind(b.Status)
	return Event{
		ID:         fmt.Sprintf("booking:%s:%s", b.ID, b.Status),
		Kind:       kind,
		UserID:     b.UserID,
		OccurredAt: b.UpdatedAt,
		Payload: &BookingData{
			BookingID:  b.ID,
			ResourceID: b.ResourceID,
			Status:     b.Status,
			Quantity:   b.Quantity,
		},
	}
}

// NewReviewPostedEvent notifies the owner of the reviewed place
func NewReviewPostedEvent(ownerID string, review *ReviewData, at time.Time) Event {
	return Event{
		ID:         "review:" + review.ReviewID,
		Kind:       EventKindReviewPosted,
		UserID:     ownerID,
		OccurredAt: at,
		Payload:    review,
	}
}

// NewBroadcastEvent fans a system message out to recipients
func NewBroadcastEvent(broadcastID string, recipients []string, data *SystemData, at time.Time) Event {
	return Event{
		ID:         "system:" + broadcastID,
		Kind:       EventKindSystemBroadcast,
		Recipients: recipients,
		OccurredAt: at,
		Payload:    data,
	}
}

// IsBroadcast reports whether the event targets a recipient list
func (e Event) IsBroadcast() bool {
	return e.Kind == EventKindSystemBroadcast
}

// DedupKey is the idempotency key of the event for recipient userID
func (e Event) DedupKey(userID string) string {
	return e.ID + ":" + userID
}
