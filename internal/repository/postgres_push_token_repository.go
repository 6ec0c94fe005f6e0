package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// PostgresPushTokenRepository implements PushTokenRepository using PostgreSQL
type PostgresPushTokenRepository struct {
	db DBTX
}

// NewPostgresPushTokenRepository creates a new PostgresPushTokenRepository
func NewPostgresPushTokenRepository(db DBTX) *PostgresPushTokenRepository {
	return &PostgresPushTokenRepository{db: db}
}

func (r *PostgresPushTokenRepository) Upsert(ctx context.Context, t *domain.PushToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO push_tokens (user_id, token, registered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, registered_at = EXCLUDED.registered_at
	`, t.UserID, t.Token, t.RegisteredAt)
	if err != nil {
		return fmt.Errorf("failed to upsert push token: %w", err)
	}
	return nil
}

func (r *PostgresPushTokenRepository) Get(ctx context.Context, userID string) (*domain.PushToken, error) {
	t := &domain.PushToken{}
	err := r.db.QueryRow(ctx, `
		SELECT user_id, token, registered_at FROM push_tokens WHERE user_id = $1
	`, userID).Scan(&t.UserID, &t.Token, &t.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPushTokenNotFound
		}
		return nil, fmt.Errorf("failed to get push token: %w", err)
	}
	return t, nil
}

func (r *PostgresPushTokenRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*domain.PushToken, error) {
	out := make(map[string]*domain.PushToken, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT user_id, token, registered_at FROM push_tokens WHERE user_id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get push tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &domain.PushToken{}
		if err := rows.Scan(&t.UserID, &t.Token, &t.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		out[t.UserID] = t
	}
	return out, rows.Err()
}

func (r *PostgresPushTokenRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM push_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	return nil
}

func (r *PostgresPushTokenRepository) DeleteIfMatches(ctx context.Context, userID, token string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM push_tokens WHERE user_id = $1 AND token = $2`, userID, token)
	if err != nil {
		return false, fmt.Errorf("failed to prune push token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ PushTokenRepository = (*PostgresPushTokenRepository)(nil)
