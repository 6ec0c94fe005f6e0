package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotificationType tags a notification and its data shape
type NotificationType string

const (
	NotificationTypeBooking   NotificationType = "BOOKING"
	NotificationTypePayment   NotificationType = "PAYMENT"
	NotificationTypeEvent     NotificationType = "EVENT"
	NotificationTypeReview    NotificationType = "REVIEW"
	NotificationTypeSystem    NotificationType = "SYSTEM"
	NotificationTypePromotion NotificationType = "PROMOTION"
	NotificationTypeSocial    NotificationType = "SOCIAL"
)

// IsValid checks if the type is a known NotificationType
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationTypeBooking, NotificationTypePayment, NotificationTypeEvent, NotificationTypeReview,
		NotificationTypeSystem, NotificationTypePromotion, NotificationTypeSocial:
		return true
	}
	return false
}

// Notification is an in-app notification owned by one user
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      NotificationData `json:"data,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification creates an unread notification whose type is taken from data
func NewNotification(userID string, data NotificationData, title, message string) (*Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidUserID
	}
	if err := ValidateData(data); err != nil {
		return nil, err
	}
	return &Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      data.Type(),
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ValidateData checks that data is present and well formed
func ValidateData(data NotificationData) error {
	if data == nil {
		return fmt.Errorf("%w: data is required", ErrInvalidNotificationData)
	}
	return data.validate()
}

// NotificationStats is a consistent unread/total snapshot for one user
type NotificationStats struct {
	Unread int64 `json:"unread_count"`
	Total  int64 `json:"total_count"`
}

// NotificationData is the tagged payload of a notification. The set of
// implementations is closed: one struct per NotificationType.
type NotificationData interface {
	Type() NotificationType
	// PushPayload is the deep-link map delivered with the push message
	PushPayload() map[string]string
	validate() error
}

// BookingData is the payload of BOOKING notifications
type BookingData struct {
	BookingID  string        `json:"booking_id"`
	ResourceID string        `json:"resource_id"`
	Status     BookingStatus `json:"status"`
	Quantity   int           `json:"quantity"`
}

func (d *BookingData) Type() NotificationType { return NotificationTypeBooking }

func (d *BookingData) PushPayload() map[string]string {
	return map[string]string{
		"type":       string(NotificationTypeBooking),
		"bookingId":  d.BookingID,
		"resourceId": d.ResourceID,
		"status":     string(d.Status),
	}
}

func (d *BookingData) validate() error { return requireField("booking_id", d.BookingID) }

// PaymentData is the payload of PAYMENT notifications
type PaymentData struct {
	BookingID string        `json:"booking_id"`
	Reference string        `json:"reference"`
	Amount    int64         `json:"amount"`
	Currency  string        `json:"currency"`
	Status    PaymentStatus `json:"status"`
}

func (d *PaymentData) Type() NotificationType { return NotificationTypePayment }

func (d *PaymentData) PushPayload() map[string]string {
	return map[string]string{
		"type":      string(NotificationTypePayment),
		"bookingId": d.BookingID,
		"reference": d.Reference,
		"status":    string(d.Status),
	}
}

func (d *PaymentData) validate() error { return requireField("reference", d.Reference) }

// EventData is the payload of EVENT notifications
type EventData struct {
	EventID  string    `json:"event_id"`
	StartsAt time.Time `json:"starts_at"`
}

func (d *EventData) Type() NotificationType { return NotificationTypeEvent }

func (d *EventData) PushPayload() map[string]string {
	return map[string]string{
		"type":     string(NotificationTypeEvent),
		"eventId":  d.EventID,
		"startsAt": d.StartsAt.UTC().Format(time.RFC3339),
	}
}

func (d *EventData) validate() error { return requireField("event_id", d.EventID) }

// ReviewData is the payload of REVIEW notifications
type ReviewData struct {
	ReviewID string `json:"review_id"`
	PlaceID  string `json:"place_id"`
	Rating   int    `json:"rating"`
	AuthorID string `json:"author_id"`
}

func (d *ReviewData) Type() NotificationType { return NotificationTypeReview }

func (d *ReviewData) PushPayload() map[string]string {
	return map[string]string{
		"type":     string(NotificationTypeReview),
		"reviewId": d.ReviewID,
		"placeId":  d.PlaceID,
		"rating":   strconv.Itoa(d.Rating),
	}
}

func (d *ReviewData) validate() error {
	if err := requireField("review_id", d.ReviewID); err != nil {
		return err
	}
	if d.Rating < 1 || d.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidNotificationData)
	}
	return nil
}

// SystemData is the payload of SYSTEM notifications
type SystemData struct {
	Severity string `json:"severity"`
	URL      string `json:"url,omitempty"`
	Title    string `json:"title,omitempty"`
	Body     string `json:"body,omitempty"`
}

func (d *SystemData) Type() NotificationType { return NotificationTypeSystem }

func (d *SystemData) PushPayload() map[string]string {
	p := map[string]string{"type": string(NotificationTypeSystem), "severity": d.Severity}
	if d.URL != "" {
		p["url"] = d.URL
	}
	return p
}

func (d *SystemData) validate() error { return requireField("severity", d.Severity) }

// PromotionData is the payload of PROMOTION notifications
type PromotionData struct {
	PromoCode string     `json:"promo_code"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (d *PromotionData) Type() NotificationType { return NotificationTypePromotion }

func (d *PromotionData) PushPayload() map[string]string {
	p := map[string]string{"type": string(NotificationTypePromotion), "promoCode": d.PromoCode}
	if d.URL != "" {
		p["url"] = d.URL
	}
	return p
}

func (d *PromotionData) validate() error { return requireField("promo_code", d.PromoCode) }

// SocialData is the payload of SOCIAL notifications
type SocialData struct {
	ActorID string `json:"actor_id"`
	Action  string `json:"action"`
}

func (d *SocialData) Type() NotificationType { return NotificationTypeSocial }

func (d *SocialData) PushPayload() map[string]string {
	return map[string]string{
		"type":    string(NotificationTypeSocial),
		"actorId": d.ActorID,
		"action":  d.Action,
	}
}

func (d *SocialData) validate() error {
	if err := requireField("actor_id", d.ActorID); err != nil {
		return err
	}
	return requireField("action", d.Action)
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidNotificationData, name)
	}
	return nil
}

// EncodeNotificationData produces the persisted JSON form of data
func EncodeNotificationData(data NotificationData) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNotificationData, err)
	}
	return raw, nil
}

// DecodeNotificationData reads persisted JSON back into the struct for t.
// Unknown fields or missing ids are a tag/shape mismatch.
func DecodeNotificationData(t NotificationType, raw []byte) (NotificationData, error) {
	var data NotificationData
	switch t {
	case NotificationTypeBooking:
		data = &BookingData{}
	case NotificationTypePayment:
		data = &PaymentData{}
	case NotificationTypeEvent:
		data = &EventData{}
	case NotificationTypeReview:
		data = &ReviewData{}
	case NotificationTypeSystem:
		data = &SystemData{}
	case NotificationTypePromotion:
		data = &PromotionData{}
	case NotificationTypeSocial:
		data = &SocialData{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidNotificationData, t)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidNotificationData, t, err)
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	return data, nil
}

// UnmarshalJSON decodes a notification using its type tag to pick the data struct
func (n *Notification) UnmarshalJSON(b []byte) error {
	type alias Notification
	var aux struct {
		alias
		Data json.RawMessage `json:"data,omitempty"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*n = Notification(aux.alias)
	data, err := DecodeNotificationData(n.Type, aux.Data)
	if err != nil {
		return err
	}
	n.Data = data
	return nil
}
