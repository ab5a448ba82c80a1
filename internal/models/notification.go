package models

import "time"

// NotificationType classifies notifications.
type NotificationType string

const (
	NotificationNewSubmission    NotificationType = "new-submission"
	NotificationAssignmentGraded NotificationType = "assignment-graded"
	NotificationDeadlineReminder NotificationType = "deadline-reminder"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Type         NotificationType `json:"type"`
	Message      string           `json:"message"`
	Link         string           `json:"link"`
	AssignmentID string           `json:"assignment_id,omitempty"`
	Read         bool             `json:"read"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NotificationFilter pages through a user's notifications.
type NotificationFilter struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}
