package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// PostgresNotificationRepository implements NotificationRepository using PostgreSQL
type PostgresNotificationRepository struct {
	db DBTX
}

// NewPostgresNotificationRepository creates a new PostgresNotificationRepository
func NewPostgresNotificationRepository(db DBTX) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// Create appends a notification
func (r *PostgresNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	data, err := domain.EncodeNotificationData(n.Data)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, data, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// List returns a page of a user's notifications, newest first
func (r *PostgresNotificationRepository) List(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]*domain.Notification, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
	`, userID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, title, message, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return out, total, nil
}

// MarkRead flips is_read on a notification owned by userID
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead flips every unread notification of userID in one statement
func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats returns unread and total counts from one statement
func (r *PostgresNotificationRepository) Stats(ctx context.Context, userID string) (*domain.NotificationStats, error) {
	stats := &domain.NotificationStats{}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE NOT is_read), COUNT(*)
		FROM notifications
		WHERE user_id = $1
	`, userID).Scan(&stats.Unread, &stats.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification stats: %w", err)
	}
	return stats, nil
}

// Delete removes a notification owned by userID
func (r *PostgresNotificationRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	n := &domain.Notification{}
	var typ string
	var raw []byte
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &raw, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}
	n.Type = domain.NotificationType(typ)
	data, err := domain.DecodeNotificationData(n.Type, raw)
	if err != nil {
		return nil, err
	}
	n.Data = data
	return n, nil
}

var _ NotificationRepository = (*PostgresNotificationRepository)(nil)
