package dto

import "github.com/noah-isme/lms-api/internal/models"

// NotificationList is a page of notifications plus the unread total.
type NotificationList struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}
