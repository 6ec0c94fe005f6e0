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

const openAttemptIndex = "uq_payment_attempts_open_booking"

// PostgresPaymentRepository implements PaymentRepository using PostgreSQL.
// The open-attempt invariant is a partial unique index on booking_id.
type PostgresPaymentRepository struct {
	db DBTX
}

// NewPostgresPaymentRepository creates a new PostgreSQL payment repository
func NewPostgresPaymentRepository(db DBTX) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

const paymentColumns = `
	id, booking_id, user_id, reference, provider_ref, provider, status,
	amount, currency, checkout_url, failure_reason, created_at, updated_at
`

// Create stores a new attempt
func (r *PostgresPaymentRepository) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.BookingID,
		a.UserID,
		a.Reference,
		nullString(a.ProviderRef),
		a.Provider,
		string(a.Status),
		a.Amount,
		a.Currency,
		nullString(a.CheckoutURL),
		nullString(a.FailureReason),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, openAttemptIndex) {
			return domain.ErrPaymentAlreadyInProgress
		}
		return fmt.Errorf("failed to create payment attempt: %w", err)
	}
	return nil
}

// GetByReference retrieves an attempt by reference
func (r *PostgresPaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_attempts WHERE reference = $1`
	return r.getOne(ctx, query, reference)
}

// GetOpenByBooking returns the open attempt of a booking
func (r *PostgresPaymentRepository) GetOpenByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_attempts
		WHERE booking_id = $1 AND status IN ('INITIATED', 'PENDING')
	`
	return r.getOne(ctx, query, bookingID)
}

// GetLatestByBooking returns the most recently created attempt of a booking
func (r *PostgresPaymentRepository) GetLatestByBooking(ctx context.Context, bookingID string) (*domain.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_attempts
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, bookingID)
}

func (r *PostgresPaymentRepository) getOne(ctx context.Context, query string, arg string) (*domain.PaymentAttempt, error) {
	a, err := scanAttempt(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment attempt: %w", err)
	}
	return a, nil
}

// MarkPending moves INITIATED to PENDING with the checkout details
func (r *PostgresPaymentRepository) MarkPending(ctx context.Context, reference, providerRef, checkoutURL string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payment_attempts
		SET status = 'PENDING', provider_ref = $2, checkout_url = $3, updated_at = NOW()
		WHERE reference = $1 AND status = 'INITIATED'
	`, reference, nullString(providerRef), nullString(checkoutURL))
	if err != nil {
		return false, fmt.Errorf("failed to mark payment pending: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSetStatus moves an attempt from one status to another
func (r *PostgresPaymentRepository) CompareAndSetStatus(ctx context.Context, reference string, from, to domain.PaymentStatus, reason string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE payment_attempts
		SET status = $3, failure_reason = COALESCE($4, failure_reason), updated_at = NOW()
		WHERE reference = $1 AND status = $2
	`, reference, string(from), string(to), nullString(reason))
	if err != nil {
		return false, fmt.Errorf("failed to update payment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListStale returns open attempts last updated before olderThan, oldest first
func (r *PostgresPaymentRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.PaymentAttempt, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payment_attempts
		WHERE status IN ('INITIATED', 'PENDING') AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	a := &domain.PaymentAttempt{}
	var status string
	var providerRef, checkoutURL, failureReason *string
	err := row.Scan(
		&a.ID,
		&a.BookingID,
		&a.UserID,
		&a.Reference,
		&providerRef,
		&a.Provider,
		&status,
		&a.Amount,
		&a.Currency,
		&checkoutURL,
		&failureReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = domain.PaymentStatus(status)
	a.ProviderRef = derefString(providerRef)
	a.CheckoutURL = derefString(checkoutURL)
	a.FailureReason = derefString(failureReason)
	return a, nil
}

var _ PaymentRepository = (*PostgresPaymentRepository)(nil)
