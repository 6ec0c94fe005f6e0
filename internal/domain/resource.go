package domain

import "time"

// DefaultCurrency is used when a resource has no currency configured
const DefaultCurrency = "ETB"

// ResourceKind is the kind of bookable resource
type ResourceKind string

const (
	ResourceKindEvent ResourceKind = "EVENT"
	ResourceKindPlace ResourceKind = "PLACE"
)

// Resource is a bookable event or place with its pricing and capacity
type Resource struct {
	ID         string       `json:"id"`
	Kind       ResourceKind `json:"kind"`
	Name       string       `json:"name"`
	OwnerID    string       `json:"owner_id,omitempty"`
	UnitPrice  int64        `json:"unit_price"`
	TaxRateBps int64        `json:"tax_rate_bps"`
	FeePerUnit int64        `json:"fee_per_unit"`
	Currency   string       `json:"currency"`
	Capacity   int          `json:"capacity"`
	StartsAt   *time.Time   `json:"starts_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Quote is a server-side price for a quantity of a resource, in minor units
type Quote struct {
	SubTotal int64
	Tax      int64
	Fees     int64
	Total    int64
	Currency string
}

// Price computes the quote for quantity units of r
func Price(r *Resource, quantity int) (Quote, error) {
	if quantity <= 0 {
		return Quote{}, ErrInvalidQuantity
	}
	qty := int64(quantity)
	sub := r.UnitPrice * qty
	tax := sub * r.TaxRateBps / 10000
	fees := r.FeePerUnit * qty
	currency := r.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return Quote{
		SubTotal: sub,
		Tax:      tax,
		Fees:     fees,
		Total:    sub + tax + fees,
		Currency: currency,
	}, nil
}
