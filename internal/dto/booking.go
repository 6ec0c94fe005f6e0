package dto

import (
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// ReserveRequest represents request to reserve capacity on a resource
type ReserveRequest struct {
	ResourceID string `json:"resource_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
}

// BookingResponse represents a booking in API response. Amounts are in minor units.
type BookingResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	ResourceID  string     `json:"resource_id"`
	Quantity    int        `json:"quantity"`
	SubTotal    int64      `json:"sub_total"`
	Tax         int64      `json:"tax"`
	Fees        int64      `json:"fees"`
	Total       int64      `json:"total"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// FromBooking converts domain Booking to BookingResponse
func FromBooking(b *domain.Booking) *BookingResponse {
	if b == nil {
		return nil
	}
	return &BookingResponse{
		ID:          b.ID,
		UserID:      b.UserID,
		ResourceID:  b.ResourceID,
		Quantity:    b.Quantity,
		SubTotal:    b.SubTotal,
		Tax:         b.Tax,
		Fees:        b.Fees,
		Total:       b.Total,
		Currency:    b.Currency,
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		ConfirmedAt: b.ConfirmedAt,
		CancelledAt: b.CancelledAt,
	}
}

// FromBookings converts a page of bookings
func FromBookings(bookings []*domain.Booking) []*BookingResponse {
	out := make([]*BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, FromBooking(b))
	}
	return out
}

// PageQuery is the pagination query of list endpoints
type PageQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

// SetDefaults applies the default page and page size
func (q *PageQuery) SetDefaults() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
}
