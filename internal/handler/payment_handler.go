package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/dto"
	"github.com/prohmpiriya/tourism-booking/internal/service"
	"github.com/prohmpiriya/tourism-booking/pkg/response"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// maxWebhookBody bounds the provider callback body
const maxWebhookBody = 1 << 20

// PaymentHandler handles payment HTTP requests
type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// InitPayment handles POST /payments/init
func (h *PaymentHandler) InitPayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.payment.init")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requireUserID(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthorized")
		return
	}

	var req dto.InitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("booking_id", req.BookingID),
		attribute.String("provider", req.Provider),
	)

	attempt, err := h.paymentService.InitPayment(ctx, req.BookingID, userID, &service.InitPaymentOptions{
		Provider:  req.Provider,
		ReturnURL: req.ReturnURL,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("reference", attempt.Reference))
	span.SetStatus(codes.Ok, "")
	response.Created(c, dto.FromPaymentAttempt(attempt))
}

// VerifyPayment handles GET /payments/verify/:reference
// Only the owner of the booking may verify its payment
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.payment.verify")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	reference := c.Param("reference")
	span.SetAttributes(attribute.String("reference", reference))

	result, err := h.paymentService.VerifyPayment(ctx, reference)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	if result.Attempt == nil || result.Attempt.UserID != userID {
		handleError(c, domain.ErrPaymentNotFound)
		return
	}

	span.SetAttributes(attribute.String("payment_status", string(result.Attempt.Status)))
	response.Success(c, &dto.VerifyPaymentResponse{
		Payment: dto.FromPaymentAttempt(result.Attempt),
		Booking: dto.FromBooking(result.Booking),
	})
}

// Webhook handles POST /payments/webhook/:provider
// The body is passed untouched to the provider for signature verification
func (h *PaymentHandler) Webhook(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.payment.webhook")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	provider := c.Param("provider")
	span.SetAttributes(attribute.String("provider", provider))

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "webhook body too large", "")
			return
		}
		response.BadRequest(c, "failed to read webhook body")
		return
	}

	result, err := h.paymentService.HandleWebhook(ctx, provider, payload, c.Request.Header)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	if result.Attempt != nil {
		span.SetAttributes(
			attribute.String("reference", result.Attempt.Reference),
			attribute.String("payment_status", string(result.Attempt.Status)),
		)
	}
	response.Success(c, gin.H{"received": true})
}
