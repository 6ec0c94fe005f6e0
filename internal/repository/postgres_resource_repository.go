package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// PostgresResourceRepository implements ResourceRepository using PostgreSQL
type PostgresResourceRepository struct {
	db DBTX
}

// NewPostgresResourceRepository creates a new PostgresResourceRepository
func NewPostgresResourceRepository(db DBTX) *PostgresResourceRepository {
	return &PostgresResourceRepository{db: db}
}

// GetByID retrieves a resource by its ID
func (r *PostgresResourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	query := `
		SELECT id, kind, name, owner_id, unit_price, tax_rate_bps, fee_per_unit,
			currency, capacity, starts_at, created_at, updated_at
		FROM resources
		WHERE id = $1
	`

	res := &domain.Resource{}
	var kind string
	var ownerID *string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&res.ID,
		&kind,
		&res.Name,
		&ownerID,
		&res.UnitPrice,
		&res.TaxRateBps,
		&res.FeePerUnit,
		&res.Currency,
		&res.Capacity,
		&res.StartsAt,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}

	res.Kind = domain.ResourceKind(kind)
	res.OwnerID = derefString(ownerID)
	return res, nil
}

// Save inserts or updates a resource. A capacity change shifts available by the same delta.
func (r *PostgresResourceRepository) Save(ctx context.Context, res *domain.Resource) error {
	query := `
		INSERT INTO resources (
			id, kind, name, owner_id, unit_price, tax_rate_bps, fee_per_unit,
			currency, capacity, available, starts_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			owner_id = EXCLUDED.owner_id,
			unit_price = EXCLUDED.unit_price,
			tax_rate_bps = EXCLUDED.tax_rate_bps,
			fee_per_unit = EXCLUDED.fee_per_unit,
			currency = EXCLUDED.currency,
			available = GREATEST(resources.available + (EXCLUDED.capacity - resources.capacity), 0),
			capacity = EXCLUDED.capacity,
			starts_at = EXCLUDED.starts_at,
			updated_at = NOW()
	`

	currency := res.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	_, err := r.db.Exec(ctx, query,
		res.ID,
		string(res.Kind),
		res.Name,
		nullString(res.OwnerID),
		res.UnitPrice,
		res.TaxRateBps,
		res.FeePerUnit,
		currency,
		res.Capacity,
		res.StartsAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save resource: %w", err)
	}
	return nil
}

// HeldQuantity sums the quantity of bookings that still hold capacity
func (r *PostgresResourceRepository) HeldQuantity(ctx context.Context, resourceID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM bookings
		WHERE resource_id = $1 AND status NOT IN ('FAILED', 'CANCELLED')
	`

	var held int64
	if err := r.db.QueryRow(ctx, query, resourceID).Scan(&held); err != nil {
		return 0, fmt.Errorf("failed to sum held quantity: %w", err)
	}
	return held, nil
}

var _ ResourceRepository = (*PostgresResourceRepository)(nil)
