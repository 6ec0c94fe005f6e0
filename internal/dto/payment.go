package dto

import (
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// InitPaymentRequest represents request to open a checkout for a booking
type InitPaymentRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	Provider  string `json:"provider,omitempty"`
	ReturnURL string `json:"return_url,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// PaymentResponse represents a payment attempt in API response
type PaymentResponse struct {
	Reference     string    `json:"reference"`
	BookingID     string    `json:"booking_id"`
	Provider      string    `json:"provider"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	CheckoutURL   string    `json:"checkout_url,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// VerifyPaymentResponse is the state of an attempt and its booking after verification
type VerifyPaymentResponse struct {
	Payment *PaymentResponse `json:"payment"`
	Booking *BookingResponse `json:"booking"`
}

// FromPaymentAttempt converts a domain attempt to PaymentResponse
func FromPaymentAttempt(a *domain.PaymentAttempt) *PaymentResponse {
	if a == nil {
		return nil
	}
	return &PaymentResponse{
		Reference:     a.Reference,
		BookingID:     a.BookingID,
		Provider:      a.Provider,
		Status:        string(a.Status),
		Amount:        a.Amount,
		Currency:      a.Currency,
		CheckoutURL:   a.CheckoutURL,
		FailureReason: a.FailureReason,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
