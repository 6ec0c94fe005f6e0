package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/internal/dto"
	"github.com/prohmpiriya/tourism-booking/internal/service"
	"github.com/prohmpiriya/tourism-booking/pkg/response"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BookingHandler handles booking HTTP requests
type BookingHandler struct {
	bookingService service.BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// Reserve handles POST /bookings
// Capacity is held atomically and the booking is returned PENDING with a server-side quote
func (h *BookingHandler) Reserve(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.reserve")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requireUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		return
	}

	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("resource_id", req.ResourceID),
		attribute.Int("quantity", req.Quantity),
	)

	booking, err := h.bookingService.Reserve(ctx, userID, req.ResourceID, req.Quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, dto.FromBooking(booking))
}

// GetBooking handles GET /bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	bookingID := c.Param("id")
	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := h.bookingService.GetBooking(ctx, bookingID, userID)
	if err != nil {
		span.RecordError(err)
		handleError(c, err)
		return
	}

	response.Success(c, dto.FromBooking(booking))
}

// ListBookings handles GET /bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.list")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	q.SetDefaults()

	bookings, total, err := h.bookingService.ListUserBookings(ctx, userID, q.Page, q.PageSize)
	if err != nil {
		span.RecordError(err)
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int64("total", total))
	response.Paginated(c, dto.FromBookings(bookings), response.NewMeta(q.Page, q.PageSize, total))
}

// CancelBooking handles POST /bookings/:id/cancel
// Cancelling an already cancelled booking returns it unchanged
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.cancel")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	bookingID := c.Param("id")
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("booking_id", bookingID),
	)

	booking, err := h.bookingService.Cancel(ctx, bookingID, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("status", string(booking.Status)))
	response.Success(c, dto.FromBooking(booking))
}
