package repository

import (
	"context"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// ResourceRepository defines data access for bookable resources
type ResourceRepository interface {
	// GetByID retrieves a resource by its ID
	GetByID(ctx context.Context, id string) (*domain.Resource, error)

	// Save inserts or updates a resource
	Save(ctx context.Context, resource *domain.Resource) error

	// HeldQuantity sums the quantity of bookings that still hold capacity on the resource
	HeldQuantity(ctx context.Context, resourceID string) (int64, error)
}
