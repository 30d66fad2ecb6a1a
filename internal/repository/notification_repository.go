package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"PetAlertAPI/internal/models"

	"github.com/google/uuid"
)

// INotificationRepository persists user-facing notifications.
type INotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error)
	// MarkDelivered upgrades a sent channel to delivered once the gateway confirms it.
	MarkDelivered(ctx context.Context, notificationID string, ch models.Channel) (bool, error)
}

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Status == "" {
		n.Status = models.StatusUnread
	}

	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification data: %w", err)
	}
	channelsJSON, err := json.Marshal(n.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification channels: %w", err)
	}

	query := `
		INSERT INTO notifications (
			id, user_id, pet_id, type, category, title, message,
			data, status, priority, channels, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(
		ctx, query,
		n.ID,
		n.UserID,
		n.PetID,
		n.Type,
		n.Category,
		n.Title,
		n.Message,
		dataJSON,
		n.Status,
		n.Priority,
		channelsJSON,
		n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return n, nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, pet_id, type, category, title, message,
		       data, status, priority, channels, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var (
			n            models.Notification
			petID        sql.NullString
			dataJSON     []byte
			channelsJSON []byte
		)

		err := rows.Scan(
			&n.ID, &n.UserID, &petID, &n.Type, &n.Category, &n.Title, &n.Message,
			&dataJSON, &n.Status, &n.Priority, &channelsJSON, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if petID.Valid {
			n.PetID = &petID.String
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification data: %w", err)
			}
		}
		if len(channelsJSON) > 0 {
			if err := json.Unmarshal(channelsJSON, &n.Channels); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification channels: %w", err)
			}
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (r *NotificationRepository) MarkDelivered(ctx context.Context, notificationID string, ch models.Channel) (bool, error) {
	query := `
		UPDATE notifications
		SET channels = jsonb_set(channels, ARRAY[$2::text, 'deliveryStatus'], '"delivered"'::jsonb)
		WHERE id = $1 AND (channels -> $2 ->> 'sent')::boolean
	`

	result, err := r.db.ExecContext(ctx, query, notificationID, string(ch))
	if err != nil {
		return false, fmt.Errorf("failed to mark notification delivered: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}
