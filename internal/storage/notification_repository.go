package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/meetassist/backend/internal/notify"
)

// DefaultNotificationLimit caps List when no limit is given.
const DefaultNotificationLimit = 50

// NotificationRepository keeps a history of delivered notifications.
// It implements notify.Sink.
type NotificationRepository struct {
	BaseRepository
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{BaseRepository: NewBaseRepository(db)}
}

// Deliver stores notifications in one transaction. Ids already stored are
// ignored.
func (r *NotificationRepository) Deliver(ctx context.Context, notifications []notify.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	return r.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO notifications (id, kind, event_id, title, body, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("preparing notification insert: %w", err)
		}
		defer stmt.Close()

		for _, n := range notifications {
			metadata, err := json.Marshal(n.Metadata)
			if err != nil {
				return fmt.Errorf("encoding notification metadata: %w", err)
			}
			if _, err := stmt.ExecContext(ctx,
				n.ID, string(n.Metadata.Kind), n.Metadata.EventID, n.Title, n.Body,
				string(metadata), formatTime(n.CreatedAt),
			); err != nil {
				return fmt.Errorf("inserting notification: %w", err)
			}
		}
		return nil
	})
}

// List returns the most recent notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, limit int) ([]notify.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}

	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, title, body, metadata, created_at
		FROM notifications
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	notifications := []notify.Notification{}
	for rows.Next() {
		var (
			n                 notify.Notification
			metadata, created string
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &metadata, &created); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		if err := json.Unmarshal([]byte(metadata), &n.Metadata); err != nil {
			return nil, fmt.Errorf("decoding notification metadata: %w", err)
		}
		if n.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}
