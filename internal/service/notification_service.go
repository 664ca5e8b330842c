package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	appErrors "github.com/noah-isme/faculty-appointments-api/pkg/errors"
)

type notificationRepository interface {
	ListByRecipient(ctx context.Context, recipientID string) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
}

// NotificationService exposes a user's notification inbox.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService constructs a notification service.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// ListMine returns the actor's notifications newest first along with the unread count.
func (s *NotificationService) ListMine(ctx context.Context, actor models.Actor) ([]models.Notification, int, error) {
	items, err := s.repo.ListByRecipient(ctx, actor.UserID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, actor.UserID)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, unread, nil
}

// MarkAsRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkAsRead(ctx context.Context, actor models.Actor, id string) (*models.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.RecipientID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "not authorized to update this notification")
	}
	if n.Read {
		return n, nil
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	n.Read = true
	return n, nil
}

// MarkAllAsRead flags every unread notification of the actor and returns how many changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, actor models.Actor) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, actor.UserID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return updated, nil
}
