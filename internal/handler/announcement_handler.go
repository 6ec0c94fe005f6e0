package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/internal/dto"
	"github.com/prohmpiriya/tourism-booking/internal/service"
	"github.com/prohmpiriya/tourism-booking/pkg/response"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// AnnouncementHandler accepts events raised by other services
type AnnouncementHandler struct {
	announcements service.AnnouncementService
}

// NewAnnouncementHandler creates a new announcement handler
func NewAnnouncementHandler(announcements service.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcements: announcements}
}

// ReviewPosted handles POST /internal/v1/events/review-posted
func (h *AnnouncementHandler) ReviewPosted(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.announcement.review_posted")
	defer span.End()

	var req dto.ReviewPostedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
		return
	}
	span.SetAttributes(attribute.String("review_id", req.ReviewID))

	event, err := h.announcements.ReviewPosted(ctx, req.OwnerID, req.ToReviewData())
	if err != nil {
		span.RecordError(err)
		handleError(c, err)
		return
	}
	response.Accepted(c, dto.FromEvent(event))
}

// Broadcast handles POST /internal/v1/broadcasts
func (h *AnnouncementHandler) Broadcast(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.announcement.broadcast")
	defer span.End()

	var req dto.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
		return
	}
	span.SetAttributes(
		attribute.String("broadcast_id", req.BroadcastID),
		attribute.Int("recipients", len(req.Recipients)),
	)

	event, err := h.announcements.Broadcast(ctx, req.BroadcastID, req.Recipients, req.ToSystemData())
	if err != nil {
		span.RecordError(err)
		handleError(c, err)
		return
	}
	response.Accepted(c, dto.FromEvent(event))
}
