package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/internal/dto"
	"github.com/prohmpiriya/tourism-booking/internal/service"
	"github.com/prohmpiriya/tourism-booking/pkg/response"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// NotificationHandler handles the notification inbox and push token endpoints
type NotificationHandler struct {
	notifications service.NotificationService
	tokens        service.PushTokenService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications service.NotificationService, tokens service.PushTokenService) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		tokens:        tokens,
	}
}

// List handles GET /notifications
func (h *NotificationHandler) List(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.notification.list")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var q dto.NotificationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	q.SetDefaults()
	span.SetAttributes(attribute.Bool("unread_only", q.UnreadOnly))

	items, total, err := h.notifications.List(ctx, userID, q.Page, q.PageSize, q.UnreadOnly)
	if err != nil {
		span.RecordError(err)
		handleError(c, err)
		return
	}

	response.Paginated(c, dto.FromNotifications(items), response.NewMeta(q.Page, q.PageSize, total))
}

// Stats handles GET /notifications/stats
func (h *NotificationHandler) Stats(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.notifications.Stats(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}

// MarkRead handles PATCH /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead handles PATCH /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.notification.mark_all_read")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		span.RecordError(err)
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int64("updated", updated))
	response.Success(c, &dto.MarkAllReadResponse{Updated: updated})
}

// Delete handles DELETE /notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterPushToken handles PUT /notifications/push-token
// A new token replaces the user's previous one
func (h *NotificationHandler) RegisterPushToken(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.notification.register_push_token")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req dto.RegisterPushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
		return
	}

	if err := h.tokens.Register(ctx, userID, req.Token); err != nil {
		span.RecordError(err)
		handleError(c, err)
		return
	}

	response.Success(c, &dto.PushTokenResponse{Token: req.Token, RegisteredAt: time.Now().UTC()})
}

// UnregisterPushToken handles DELETE /notifications/push-token
func (h *NotificationHandler) UnregisterPushToken(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.tokens.Unregister(c.Request.Context(), userID); err != nil {
		handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
