package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

// NotificationHandler serves the caller's notification log.
type NotificationHandler struct {
	notifications *service.NotificationService
	reminders     *service.ReminderService
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService, reminders *service.ReminderService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, reminders: reminders}
}

// List godoc
// @Summary List notifications
// @Description Newest first, with the unread total
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param unreadOnly query bool false "Only unread"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	unreadOnly, _ := strconv.ParseBool(c.Query("unreadOnly"))
	filter := models.NotificationFilter{
		UnreadOnly: unreadOnly,
		Page:       queryInt(c, "page"),
		PageSize:   queryInt(c, "pageSize"),
	}
	list, pagination, err := h.notifications.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, pagination)
}

// MarkRead godoc
// @Summary Mark a notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkRead(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, n)
}

// MarkAllRead godoc
// @Summary Mark every notification read
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"updated": updated})
}

// DeadlineCheck godoc
// @Summary Create due-soon reminders
// @Description Creates a reminder for each unsubmitted assignment due within the reminder window. Safe to call repeatedly.
// @Tags Notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/deadline-check [post]
func (h *NotificationHandler) DeadlineCheck(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	created, err := h.reminders.CheckMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, created)
}
