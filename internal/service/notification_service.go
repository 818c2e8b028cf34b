package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/pkg/config"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
	"github.com/noah-isme/fyp-supervision-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id, userID string) error
}

// NotificationService persists and serves in-app notifications.
// Writes go through a background queue so domain operations never
// block or fail on the notification path.
type NotificationService struct {
	repo    notificationRepository
	queue   *jobs.Queue[*models.Notification]
	metrics *MetricsService
	logger  *zap.Logger
}

// NotificationList is the inbox payload returned to clients.
type NotificationList struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
}

// NewNotificationService constructs the service and its dispatch queue.
// Call Start before emitting and Stop on shutdown.
func NewNotificationService(repo notificationRepository, cfg config.NotificationsConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{repo: repo, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification for asynchronous persistence. Errors
// are logged and swallowed; emitters must never fail on this path.
func (s *NotificationService) Notify(ctx context.Context, userID, message string, ntype models.NotificationType, link string, priority models.NotificationPriority) {
	notification := &models.Notification{
		UserID:   userID,
		Message:  message,
		Type:     ntype,
		Priority: priority,
	}
	if link != "" {
		notification.Link = &link
	}
	err := s.queue.Enqueue(jobs.Job[*models.Notification]{
		ID:      uuid.NewString(),
		Payload: notification,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification",
			zap.String("user_id", userID), zap.String("type", string(ntype)), zap.Error(err))
		return
	}
	s.metrics.RecordNotificationEnqueued()
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job[*models.Notification]) error {
	return s.repo.Create(ctx, job.Payload)
}

// List returns the user's notifications with the unread count.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) (*NotificationList, error) {
	notifications, err := s.repo.List(ctx, models.NotificationFilter{UserID: userID, UnreadOnly: unreadOnly, Limit: limit})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	return &NotificationList{Notifications: notifications, UnreadCount: unread}, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

// MarkAllRead flags all of the user's notifications as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notifications")
	}
	return nil
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}
