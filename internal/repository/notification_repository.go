package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"price-scout/internal/domain"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository defines the interface for notification data access
type NotificationRepository interface {
	List(ctx context.Context, unreadOnly bool, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
}

type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository
func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// List returns notifications newest first
func (r *notificationRepository) List(ctx context.Context, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	query := `
		SELECT n.id, n.product_id, p.name, n.message, n.price_change, n.old_price, n.new_price, n.is_read, n.created_at
		FROM notifications n
		JOIN products p ON p.id = n.product_id
		WHERE ($1 = FALSE OR NOT n.is_read)
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*domain.Notification{}
	for rows.Next() {
		n := &domain.Notification{}
		err := rows.Scan(
			&n.ID,
			&n.ProductID,
			&n.ProductName,
			&n.Message,
			&n.PriceChange,
			&n.OldPrice,
			&n.NewPrice,
			&n.IsRead,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
