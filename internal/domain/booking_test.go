package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNextStatus(t *testing.T) {
	tests := []struct {
		name        string
		current     BookingStatus
		event       BookingEvent
		want        BookingStatus
		wantChanged bool
		wantErr     error
	}{
		{"pending initiated", BookingStatusPending, EventPaymentInitiated, BookingStatusAwaitingPayment, true, nil},
		{"pending cancelled", BookingStatusPending, EventUserCancelled, BookingStatusCancelled, true, nil},
		{"awaiting succeeded", BookingStatusAwaitingPayment, EventPaymentSucceeded, BookingStatusConfirmed, true, nil},
		{"awaiting failed", BookingStatusAwaitingPayment, EventPaymentFailed, BookingStatusFailed, true, nil},
		{"awaiting cancelled", BookingStatusAwaitingPayment, EventUserCancelled, BookingStatusCancelled, true, nil},
		{"confirmed refunded", BookingStatusConfirmed, EventRefunded, BookingStatusRefunded, true, nil},

		{"repeat succeeded", BookingStatusConfirmed, EventPaymentSucceeded, BookingStatusConfirmed, false, nil},
		{"repeat cancelled", BookingStatusCancelled, EventUserCancelled, BookingStatusCancelled, false, nil},
		{"repeat failed", BookingStatusFailed, EventPaymentFailed, BookingStatusFailed, false, nil},
		{"repeat initiated", BookingStatusAwaitingPayment, EventPaymentInitiated, BookingStatusAwaitingPayment, false, nil},
		{"repeat refunded", BookingStatusRefunded, EventRefunded, BookingStatusRefunded, false, nil},

		{"pending succeeded", BookingStatusPending, EventPaymentSucceeded, BookingStatusPending, false, ErrInvalidTransition},
		{"pending failed", BookingStatusPending, EventPaymentFailed, BookingStatusPending, false, ErrInvalidTransition},
		{"confirmed cancelled", BookingStatusConfirmed, EventUserCancelled, BookingStatusConfirmed, false, ErrInvalidTransition},
		{"failed succeeded", BookingStatusFailed, EventPaymentSucceeded, BookingStatusFailed, false, ErrInvalidTransition},
		{"cancelled initiated", BookingStatusCancelled, EventPaymentInitiated, BookingStatusCancelled, false, ErrInvalidTransition},
		{"pending refunded", BookingStatusPending, EventRefunded, BookingStatusPending, false, ErrInvalidTransition},
		{"unknown event", BookingStatusPending, BookingEvent("Teleported"), BookingStatusPending, false, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed, err := NextStatus(tt.current, tt.event)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NextStatus() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NextStatus() = %v, want %v", got, tt.want)
			}
			if changed != tt.wantChanged {
				t.Errorf("NextStatus() changed = %v, want %v", changed, tt.wantChanged)
			}
		})
	}
}

func TestBookingStatus_ReleasesCapacity(t *testing.T) {
	for _, s := range []BookingStatus{BookingStatusFailed, BookingStatusCancelled} {
		if !s.ReleasesCapacity() {
			t.Errorf("%s should release capacity", s)
		}
	}
	for _, s := range []BookingStatus{BookingStatusPending, BookingStatusAwaitingPayment, BookingStatusConfirmed, BookingStatusRefunded} {
		if s.ReleasesCapacity() {
			t.Errorf("%s should not release capacity", s)
		}
	}
}

func TestNewBooking(t *testing.T) {
	quote := Quote{SubTotal: 1000, Tax: 150, Fees: 20, Total: 1170, Currency: "ETB"}

	b, err := NewBooking("b-1", "u-1", "r-1", 2, quote)
	if err != nil {
		t.Fatalf("NewBooking() error = %v", err)
	}
	if b.Status != BookingStatusPending {
		t.Errorf("Status = %v, want PENDING", b.Status)
	}
	if b.Total != 1170 || b.Currency != "ETB" {
		t.Errorf("unexpected totals: %+v", b)
	}

	tests := []struct {
		name       string
		userID     string
		resourceID string
		quantity   int
		wantErr    error
	}{
		{"zero quantity", "u-1", "r-1", 0, ErrInvalidQuantity},
		{"negative quantity", "u-1", "r-1", -1, ErrInvalidQuantity},
		{"empty user", " ", "r-1", 1, ErrInvalidUserID},
		{"empty resource", "u-1", "", 1, ErrInvalidResourceID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBooking("b-1", tt.userID, tt.resourceID, tt.quantity, quote)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if !IsValidationError(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	bad := Quote{SubTotal: 100, Tax: 1, Fees: 1, Total: 100}
	if _, err := NewBooking("b-1", "u-1", "r-1", 1, bad); !errors.Is(err, ErrValidation) {
		t.Errorf("inconsistent total should fail validation, got %v", err)
	}
}

func TestBooking_Apply(t *testing.T) {
	b := &Booking{Status: BookingStatusAwaitingPayment}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	b.Apply(BookingStatusConfirmed, at)
	if b.ConfirmedAt == nil || !b.ConfirmedAt.Equal(at) {
		t.Errorf("ConfirmedAt = %v, want %v", b.ConfirmedAt, at)
	}
	if b.CancelledAt != nil {
		t.Error("CancelledAt should be nil")
	}

	b2 := &Booking{Status: BookingStatusPending}
	b2.Apply(BookingStatusCancelled, at)
	if b2.CancelledAt == nil {
		t.Error("CancelledAt should be set")
	}
}

func TestNewBookingEvent(t *testing.T) {
	b := &Booking{ID: "b-1", UserID: "u-1", ResourceID: "r-1", Quantity: 2, Status: BookingStatusConfirmed}
	ev := NewBookingEvent(b)

	if ev.ID != "booking:b-1:CONFIRMED" {
		t.Errorf("ID = %s", ev.ID)
	}
	if ev.Kind != EventKindBookingConfirmed {
		t.Errorf("Kind = %s", ev.Kind)
	}
	if ev.DedupKey("u-1") != "booking:b-1:CONFIRMED:u-1" {
		t.Errorf("DedupKey = %s", ev.DedupKey("u-1"))
	}
	data, ok := ev.Payload.(*BookingData)
	if !ok || data.BookingID != "b-1" || data.Status != BookingStatusConfirmed {
		t.Errorf("unexpected payload %#v", ev.Payload)
	}
}
