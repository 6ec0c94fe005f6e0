package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusInitiated PaymentStatus = "INITIATED"
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// IsTerminal reports whether the status can no longer change
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// IsOpen reports whether the attempt still blocks a new attempt for its booking
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusInitiated || s == PaymentStatusPending
}

// LedgerEvent maps a terminal attempt status to the booking event it settles
func (s PaymentStatus) LedgerEvent() (BookingEvent, bool) {
	switch s {
	case PaymentStatusSucceeded:
		return EventPaymentSucceeded, true
	case PaymentStatusFailed:
		return EventPaymentFailed, true
	}
	return "", false
}

// PaymentAttempt is one checkout attempt for a booking
type PaymentAttempt struct {
	ID            string        `json:"id"`
	BookingID     string        `json:"booking_id"`
	UserID        string        `json:"user_id"`
	Reference     string        `json:"reference"`
	ProviderRef   string        `json:"provider_ref,omitempty"`
	Provider      string        `json:"provider"`
	Status        PaymentStatus `json:"status"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	CheckoutURL   string        `json:"checkout_url,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewPaymentAttempt creates an INITIATED attempt for booking
func NewPaymentAttempt(booking *Booking, provider string, now time.Time) *PaymentAttempt {
	now = now.UTC()
	return &PaymentAttempt{
		ID:        uuid.New().String(),
		BookingID: booking.ID,
		UserID:    booking.UserID,
		Reference: NewPaymentReference(booking.ID, now),
		Provider:  provider,
		Status:    PaymentStatusInitiated,
		Amount:    booking.Total,
		Currency:  booking.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewPaymentReference builds the transaction reference "<bookingId>-<unixMillis>"
func NewPaymentReference(bookingID string, at time.Time) string {
	return fmt.Sprintf("%s-%d", bookingID, at.UnixMilli())
}

// BookingIDFromReference recovers the booking id from a transaction reference
func BookingIDFromReference(reference string) (string, bool) {
	i := strings.LastIndex(reference, "-")
	if i <= 0 || i == len(reference)-1 {
		return "", false
	}
	for _, r := range reference[i+1:] {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return reference[:i], true
}
