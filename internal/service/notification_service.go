package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/mailer"
)

// JobTypeNotificationMail identifies queued notification e-mails.
const JobTypeNotificationMail = "notification-mail"

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	ListByUser(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
}

type mailDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

// NotificationService keeps the per-user notification log and optionally
// mirrors new entries to e-mail.
type NotificationService struct {
	repo    notificationRepository
	users   userLookup
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time

	queue       mailDispatcher
	sender      mailer.Sender
	frontendURL string
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(repo notificationRepository, users userLookup, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		repo:    repo,
		users:   users,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnableMail turns on e-mail delivery. It must be called before the service
// is shared between goroutines.
func (s *NotificationService) EnableMail(queue mailDispatcher, sender mailer.Sender, frontendURL string) {
	s.queue = queue
	s.sender = sender
	s.frontendURL = frontendURL
}

// Notify stores a notification for its recipient. A notification whose id
// already exists yields a Conflict error wrapping store.ErrConflict.
func (s *NotificationService) Notify(ctx context.Context, n *models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	n.Read = false
	if err := s.repo.Create(ctx, n); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "notification already exists")
		}
		return internalError(err, "failed to create notification")
	}
	s.metrics.RecordNotification(n.Type)

	if s.queue != nil {
		job := jobs.Job{ID: n.ID, Type: JobTypeNotificationMail, Payload: n.ID}
		if err := s.queue.TryEnqueue(job); err != nil {
			s.logger.Warn("failed to enqueue notification mail", zap.String("notification_id", n.ID), zap.Error(err))
		}
	}
	return nil
}

// List returns a page of the actor's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, actor models.Actor, filter models.NotificationFilter) (*dto.NotificationList, *models.Pagination, error) {
	items, total, err := s.repo.ListByUser(ctx, actor.ID, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list notifications")
	}
	unread, err := s.repo.CountUnread(ctx, actor.ID)
	if err != nil {
		return nil, nil, internalError(err, "failed to count notifications")
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &dto.NotificationList{Items: items, Unread: unread},
		&models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead flags one of the actor's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor models.Actor, id string) (*models.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, internalError(err, "failed to load notification")
	}
	if n.UserID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	if n.Read {
		return n, nil
	}
	updated, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return nil, internalError(err, "failed to mark notification read")
	}
	return updated, nil
}

// MarkAllRead flags every unread notification of the actor.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor models.Actor) (int, error) {
	n, err := s.repo.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return 0, internalError(err, "failed to mark notifications read")
	}
	return n, nil
}

// DeliverMail is the jobs.Handler for JobTypeNotificationMail.
func (s *NotificationService) DeliverMail(ctx context.Context, job jobs.Job) error {
	if s.sender == nil {
		return nil
	}
	id, _ := job.Payload.(string)
	if id == "" {
		id = job.ID
	}
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load notification %s: %w", id, err)
	}
	user, err := s.users.FindByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("load recipient %s: %w", n.UserID, err)
	}

	link := s.frontendURL + n.Link
	msg := mailer.Message{
		ToName:      user.Name,
		ToAddress:   user.Email,
		Subject:     mailSubject(n.Type),
		TextContent: n.Message + "\n\n" + link,
		HTMLContent: fmt.Sprintf("<p>%s</p><p><a href=\"%s\">Open</a></p>", html.EscapeString(n.Message), html.EscapeString(link)),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}
	s.logger.Debug("notification mailed", zap.String("notification_id", n.ID), zap.String("user_id", n.UserID))
	return nil
}

func mailSubject(kind models.NotificationType) string {
	switch kind {
	case models.NotificationNewSubmission:
		return "New submission"
	case models.NotificationAssignmentGraded:
		return "Your assignment was graded"
	case models.NotificationDeadlineReminder:
		return "Assignment due soon"
	default:
		return "Notification"
	}
}
