package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/database"
)

// PostgresCapacityCounter implements CapacityCounter with a conditional
// UPDATE on resources.available and a capacity_holds row in one transaction
type PostgresCapacityCounter struct {
	db DBTX
}

// NewPostgresCapacityCounter creates a new PostgresCapacityCounter
func NewPostgresCapacityCounter(db DBTX) *PostgresCapacityCounter {
	return &PostgresCapacityCounter{db: db}
}

// Reserve holds qty units for bookingID
func (c *PostgresCapacityCounter) Reserve(ctx context.Context, bookingID, resourceID string, qty int) (int64, error) {
	var remaining int64
	err := database.WithTx(ctx, c.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE resources
			SET available = available - $2, updated_at = NOW()
			WHERE id = $1 AND available >= $2
			RETURNING available
		`, resourceID, qty).Scan(&remaining)
		if errors.Is(err, pgx.ErrNoRows) {
			var available *int64
			if err := tx.QueryRow(ctx, `SELECT available FROM resources WHERE id = $1`, resourceID).Scan(&available); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return domain.ErrResourceNotFound
				}
				return fmt.Errorf("failed to read capacity: %w", err)
			}
			if available != nil {
				remaining = *available
			}
			return domain.ErrCapacityExceeded
		}
		if err != nil {
			return fmt.Errorf("failed to decrement capacity: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO capacity_holds (booking_id, resource_id, quantity)
			VALUES ($1, $2, $3)
		`, bookingID, resourceID, qty)
		if err != nil {
			if database.IsUniqueViolation(err, "") {
				return ErrHoldExists
			}
			return fmt.Errorf("failed to insert capacity hold: %w", err)
		}
		return nil
	})
	return remaining, err
}

// Release returns the hold of bookingID once
func (c *PostgresCapacityCounter) Release(ctx context.Context, bookingID string) (bool, error) {
	released := false
	err := database.WithTx(ctx, c.db, func(tx pgx.Tx) error {
		var resourceID string
		var qty int64
		err := tx.QueryRow(ctx, `
			UPDATE capacity_holds
			SET released_at = NOW()
			WHERE booking_id = $1 AND released_at IS NULL
			RETURNING resource_id, quantity
		`, bookingID).Scan(&resourceID, &qty)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to release capacity hold: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE resources SET available = available + $2, updated_at = NOW() WHERE id = $1
		`, resourceID, qty); err != nil {
			return fmt.Errorf("failed to increment capacity: %w", err)
		}
		released = true
		return nil
	})
	return released, err
}

// Available returns the remaining capacity of a resource
func (c *PostgresCapacityCounter) Available(ctx context.Context, resourceID string) (int64, error) {
	var available int64
	err := c.db.QueryRow(ctx, `SELECT available FROM resources WHERE id = $1`, resourceID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrResourceNotFound
		}
		return 0, fmt.Errorf("failed to get capacity: %w", err)
	}
	return available, nil
}

// SetCapacity overwrites the remaining capacity of a resource
func (c *PostgresCapacityCounter) SetCapacity(ctx context.Context, resourceID string, available int64) error {
	tag, err := c.db.Exec(ctx, `UPDATE resources SET available = $2, updated_at = NOW() WHERE id = $1`, resourceID, available)
	if err != nil {
		return fmt.Errorf("failed to set capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}

var _ CapacityCounter = (*PostgresCapacityCounter)(nil)
