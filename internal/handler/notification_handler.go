package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/faculty-appointments-api/internal/models"
	"github.com/noah-isme/faculty-appointments-api/pkg/response"
)

type notificationService interface {
	ListMine(ctx context.Context, actor models.Actor) ([]models.Notification, int, error)
	MarkAsRead(ctx context.Context, actor models.Actor, id string) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, actor models.Actor) (int64, error)
}

// NotificationHandler exposes the caller's inbox.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler builds the handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// List godoc
// @Summary My notifications
// @Description Newest first; meta.unread carries the unread count
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	items, unread, err := h.service.ListMine(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, map[string]interface{}{"unread": unread})
}

// MarkAsRead godoc
// @Summary Mark notification read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications/{id} [put]
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	n, err := h.service.MarkAsRead(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, n, nil)
}

// MarkAllAsRead godoc
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /notifications/read-all [put]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	updated, err := h.service.MarkAllAsRead(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"updated": updated}, nil)
}
