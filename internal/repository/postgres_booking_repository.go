package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/database"
)

// PostgresBookingRepository implements BookingRepository using PostgreSQL
type PostgresBookingRepository struct {
	db DBTX
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(db DBTX) *PostgresBookingRepository {
	return &PostgresBookingRepository{db: db}
}

const bookingColumns = `
	id, user_id, resource_id, quantity, sub_total, tax, fees, total,
	currency, status, created_at, updated_at, confirmed_at, cancelled_at
`

// Create creates a new booking record in the database
func (r *PostgresBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.Exec(ctx, query,
		b.ID,
		b.UserID,
		b.ResourceID,
		b.Quantity,
		b.SubTotal,
		b.Tax,
		b.Fees,
		b.Total,
		b.Currency,
		b.Status.String(),
		b.CreatedAt,
		b.UpdatedAt,
		b.ConfirmedAt,
		b.CancelledAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "bookings_pkey") {
			return ErrDuplicateBooking
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetByID retrieves a booking by its ID
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListByUser returns a page of a user's bookings, newest first
func (r *PostgresBookingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Booking, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*domain.Booking, 0, limit)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, total, nil
}

// CompareAndSetStatus moves the booking from one status to another
func (r *PostgresBookingRepository) CompareAndSetStatus(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) (bool, error) {
	query := `
		UPDATE bookings SET
			status = $3,
			updated_at = $4,
			confirmed_at = CASE WHEN $3 = 'CONFIRMED' THEN $4 ELSE confirmed_at END,
			cancelled_at = CASE WHEN $3 = 'CANCELLED' THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, id, from.String(), to.String(), at)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check booking: %w", err)
	}
	if !exists {
		return false, domain.ErrBookingNotFound
	}
	return false, nil
}

// ListStale returns bookings in status last updated before olderThan, oldest first
func (r *PostgresBookingRepository) ListStale(ctx context.Context, status domain.BookingStatus, olderThan time.Time, limit int) ([]*domain.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3
	`, status.String(), olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	b := &domain.Booking{}
	var status string
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.ResourceID,
		&b.Quantity,
		&b.SubTotal,
		&b.Tax,
		&b.Fees,
		&b.Total,
		&b.Currency,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.ConfirmedAt,
		&b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BookingStatus(status)
	return b, nil
}

var _ BookingRepository = (*PostgresBookingRepository)(nil)
