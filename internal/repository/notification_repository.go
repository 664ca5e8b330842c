package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
)

// NotificationRepository persists user notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a notification repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ListByRecipient returns a user's notifications newest first, with the sender's name joined in.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string) ([]models.Notification, error) {
	const query = `SELECT n.id, n.recipient_id, n.sender_id, u.name AS sender_name, n.type, n.content, n.read, n.appointment_id, n.created_at
FROM notifications n
LEFT JOIN users u ON u.id = n.sender_id
WHERE n.recipient_id = $1
ORDER BY n.created_at DESC`
	var items []models.Notification
	if err := r.db.SelectContext(ctx, &items, query, recipientID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// CountUnread returns how many notifications the user has not read.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`, recipientID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return total, nil
}

// FindByID returns a notification by identifier.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	const query = `SELECT id, recipient_id, sender_id, type, content, read, appointment_id, created_at FROM notifications WHERE id = $1`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		if isMissingRow(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

// Create inserts a standalone notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return insertNotification(ctx, r.db, n)
}

// MarkRead flags a single notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead flags every unread notification of the user as read and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND read = FALSE`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return updated, nil
}

func insertNotification(ctx context.Context, exec sqlx.ExtContext, n *models.Notification) error {
	if n == nil {
		return fmt.Errorf("notification payload is nil")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, recipient_id, sender_id, type, content, read, appointment_id, created_at)
VALUES (:id, :recipient_id, :sender_id, :type, :content, :read, :appointment_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
