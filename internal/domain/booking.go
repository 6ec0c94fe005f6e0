package domain

import (
	"strings"
	"time"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending         BookingStatus = "PENDING"
	BookingStatusAwaitingPayment BookingStatus = "AWAITING_PAYMENT"
	BookingStatusConfirmed       BookingStatus = "CONFIRMED"
	BookingStatusFailed          BookingStatus = "FAILED"
	BookingStatusCancelled       BookingStatus = "CANCELLED"
	BookingStatusRefunded        BookingStatus = "REFUNDED"
)

// IsValid checks if the status is a valid BookingStatus
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusAwaitingPayment, BookingStatusConfirmed,
		BookingStatusFailed, BookingStatusCancelled, BookingStatusRefunded:
		return true
	}
	return false
}

// ReleasesCapacity reports whether entering this status returns the held capacity
func (s BookingStatus) ReleasesCapacity() bool {
	return s == BookingStatusFailed || s == BookingStatusCancelled
}

func (s BookingStatus) String() string {
	return string(s)
}

// BookingEvent drives the booking state machine
type BookingEvent string

const (
	EventPaymentInitiated BookingEvent = "PaymentInitiated"
	EventPaymentSucceeded BookingEvent = "PaymentSucceeded"
	EventPaymentFailed    BookingEvent = "PaymentFailed"
	EventUserCancelled    BookingEvent = "UserCancelled"
	EventRefunded         BookingEvent = "Refunded"
)

var transitions = map[BookingStatus]map[BookingEvent]BookingStatus{
	BookingStatusPending: {
		EventPaymentInitiated: BookingStatusAwaitingPayment,
		EventUserCancelled:    BookingStatusCancelled,
	},
	BookingStatusAwaitingPayment: {
		EventPaymentSucceeded: BookingStatusConfirmed,
		EventPaymentFailed:    BookingStatusFailed,
		EventUserCancelled:    BookingStatusCancelled,
	},
	BookingStatusConfirmed: {
		EventRefunded: BookingStatusRefunded,
	},
}

// resulting status of each event, used to recognise repeats
var eventTargets = map[BookingEvent]BookingStatus{
	EventPaymentInitiated: BookingStatusAwaitingPayment,
	EventPaymentSucceeded: BookingStatusConfirmed,
	EventPaymentFailed:    BookingStatusFailed,
	EventUserCancelled:    BookingStatusCancelled,
	EventRefunded:         BookingStatusRefunded,
}

// NextStatus applies event to current. A repeated event against the status it
// produces returns current with changed=false. Any other pair outside the
// transition table is ErrInvalidTransition.
func NextStatus(current BookingStatus, event BookingEvent) (next BookingStatus, changed bool, err error) {
	if to, ok := transitions[current][event]; ok {
		return to, true, nil
	}
	if target, ok := eventTargets[event]; ok && target == current {
		return current, false, nil
	}
	return current, false, ErrInvalidTransition
}

// Booking represents a booking entity
type Booking struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	ResourceID  string        `json:"resource_id"`
	Quantity    int           `json:"quantity"`
	SubTotal    int64         `json:"sub_total"`
	Tax         int64         `json:"tax"`
	Fees        int64         `json:"fees"`
	Total       int64         `json:"total"`
	Currency    string        `json:"currency"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty"`
}

// NewBooking creates a PENDING booking priced by quote
func NewBooking(id, userID, resourceID string, quantity int, quote Quote) (*Booking, error) {
	now := time.Now().UTC()
	b := &Booking{
		ID:         id,
		UserID:     userID,
		ResourceID: resourceID,
		Quantity:   quantity,
		SubTotal:   quote.SubTotal,
		Tax:        quote.Tax,
		Fees:       quote.Fees,
		Total:      quote.Total,
		Currency:   quote.Currency,
		Status:     BookingStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate validates all booking fields
func (b *Booking) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrInvalidBookingID
	}
	if err := ValidateReserveInput(b.UserID, b.ResourceID, b.Quantity); err != nil {
		return err
	}
	if b.SubTotal < 0 || b.Tax < 0 || b.Fees < 0 || b.Total != b.SubTotal+b.Tax+b.Fees {
		return ErrValidation
	}
	if !b.Status.IsValid() {
		return ErrValidation
	}
	return nil
}

// ValidateReserveInput checks the caller-supplied reserve arguments
func ValidateReserveInput(userID, resourceID string, quantity int) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	if strings.TrimSpace(resourceID) == "" {
		return ErrInvalidResourceID
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Apply moves the booking to next and stamps the lifecycle timestamps
func (b *Booking) Apply(next BookingStatus, at time.Time) {
	b.Status = next
	b.UpdatedAt = at
	switch next {
	case BookingStatusConfirmed:
		b.ConfirmedAt = &at
	case BookingStatusCancelled:
		b.CancelledAt = &at
	}
}

// BelongsToUser checks if the booking belongs to the specified user
func (b *Booking) BelongsToUser(userID string) bool {
	return b.UserID == userID
}
