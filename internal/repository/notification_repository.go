package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NotificationRepository stores per-user notifications.
type NotificationRepository struct {
	notifications *store.Collection[models.Notification]
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(driver store.Driver) *NotificationRepository {
	return &NotificationRepository{notifications: store.NewCollection[models.Notification](driver, store.Notifications)}
}

// Create stores a notification. Callers using a natural id get
// store.ErrConflict when it already exists.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	if err := r.notifications.Create(ctx, n.ID, n); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return err
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// FindByID returns a notification by id.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	n, err := r.notifications.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return n, nil
}

// ListByUser returns one page of a user's notifications, newest first, with
// the total number matching the filter.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, int, error) {
	items, err := r.notifications.Find(ctx, func(n *models.Notification) bool {
		return n.UserID == userID && (!filter.UnreadOnly || !n.Read)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })

	total := len(items)
	page, size := normalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start >= total {
		return []models.Notification{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

// CountUnread returns how many unread notifications a user has.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	items, err := r.notifications.Find(ctx, func(n *models.Notification) bool {
		return n.UserID == userID && !n.Read
	})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return len(items), nil
}

// MarkRead flags one notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	n, err := r.notifications.Update(ctx, id, func(n *models.Notification) error {
		n.Read = true
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

// MarkAllRead flags every unread notification of a user in one batch.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	n, err := r.notifications.UpdateWhere(ctx, func(n *models.Notification) bool {
		return n.UserID == userID && !n.Read
	}, func(n *models.Notification) {
		n.Read = true
	})
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
