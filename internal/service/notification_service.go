package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/repository"
	appErrors "github.com/ecas/approval-api/pkg/errors"
)

type notificationStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// NotificationService serves the requester inbox.
type NotificationService struct {
	repo   notificationStore
	cache  *CacheService
	logger *zap.Logger
}

// NewNotificationService constructs the service. cache may be nil.
func NewNotificationService(repo notificationStore, cache *CacheService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, cache: cache, logger: logger}
}

func unreadKey(userID string) string {
	return "notifications:unread:" + userID
}

// List returns the most recent notifications of the user.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	items, err := s.repo.ListByUser(ctx, userID, repository.InboxLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// UnreadCount returns the number of unread notifications, served from cache when possible.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	if s.cache.Get(ctx, unreadKey(userID), &count) {
		return count, nil
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	s.cache.Set(ctx, unreadKey(userID), count, 0)
	return count, nil
}

// MarkRead flags one notification as read. Only its recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification")
	}
	s.InvalidateUnread(ctx, userID)
	return nil
}

// MarkAllRead flags every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications")
	}
	s.InvalidateUnread(ctx, userID)
	return updated, nil
}

// InvalidateUnread drops the cached unread counter of the user.
func (s *NotificationService) InvalidateUnread(ctx context.Context, userID string) {
	s.cache.Invalidate(ctx, unreadKey(userID))
}
