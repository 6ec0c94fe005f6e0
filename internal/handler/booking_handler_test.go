package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBookingRouter(h *BookingHandler, userID string) *gin.Engine {
	router := newTestRouter(userID)
	bookings := router.Group("/bookings")
	{
		bookings.POST("", h.Reserve)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
	return router
}

func sampleBooking(status domain.BookingStatus) *domain.Booking {
	now := time.Now().UTC()
	return &domain.Booking{
		ID:         "b-1",
		UserID:     "user-1",
		ResourceID: "tour-1",
		Quantity:   2,
		SubTotal:   300000,
		Total:      300000,
		Currency:   "ETB",
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestBookingHandler_Reserve(t *testing.T) {
	tests := []struct {
		name       string
		userID     string
		body       interface{}
		reserveErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "success",
			userID:     "user-1",
			body:       dto.ReserveRequest{ResourceID: "tour-1", Quantity: 2},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing user",
			body:       dto.ReserveRequest{ResourceID: "tour-1", Quantity: 2},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "missing quantity",
			userID:     "user-1",
			body:       map[string]interface{}{"resource_id": "tour-1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "malformed json",
			userID:     "user-1",
			body:       []byte(`{"resource_id":`),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "capacity exceeded",
			userID:     "user-1",
			body:       dto.ReserveRequest{ResourceID: "tour-1", Quantity: 2},
			reserveErr: domain.ErrCapacityExceeded,
			wantStatus: http.StatusConflict,
			wantCode:   "CAPACITY_EXCEEDED",
		},
		{
			name:       "unknown resource",
			userID:     "user-1",
			body:       dto.ReserveRequest{ResourceID: "nope", Quantity: 2},
			reserveErr: fmt.Errorf("failed to load resource: %w", domain.ErrResourceNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   "RESOURCE_NOT_FOUND",
		},
		{
			name:       "quantity over limit",
			userID:     "user-1",
			body:       dto.ReserveRequest{ResourceID: "tour-1", Quantity: 50},
			reserveErr: domain.ErrInvalidQuantity,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_QUANTITY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockBookingService{
				ReserveFunc: func(ctx context.Context, userID, resourceID string, quantity int) (*domain.Booking, error) {
					if tt.reserveErr != nil {
						return nil, tt.reserveErr
					}
					b := sampleBooking(domain.BookingStatusPending)
					b.UserID = userID
					b.ResourceID = resourceID
					b.Quantity = quantity
					return b, nil
				},
			}
			router := setupBookingRouter(NewBookingHandler(svc), tt.userID)

			w, env := doRequest(t, router, http.MethodPost, "/bookings", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantCode != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantCode, env.Error.Code)
				assert.False(t, env.Success)
				return
			}

			var got dto.BookingResponse
			require.NoError(t, json.Unmarshal(env.Data, &got))
			assert.Equal(t, "user-1", got.UserID)
			assert.Equal(t, "PENDING", got.Status)
			assert.Equal(t, 2, got.Quantity)
		})
	}
}

func TestBookingHandler_GetBooking(t *testing.T) {
	svc := &MockBookingService{
		GetBookingFunc: func(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
			if bookingID != "b-1" || userID != "user-1" {
				return nil, domain.ErrBookingNotFound
			}
			return sampleBooking(domain.BookingStatusConfirmed), nil
		},
	}

	t.Run("owner", func(t *testing.T) {
		router := setupBookingRouter(NewBookingHandler(svc), "user-1")
		w, env := doRequest(t, router, http.MethodGet, "/bookings/b-1", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var got dto.BookingResponse
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, "CONFIRMED", got.Status)
		assert.Equal(t, int64(300000), got.Total)
	})

	t.Run("other user sees not found", func(t *testing.T) {
		router := setupBookingRouter(NewBookingHandler(svc), "user-2")
		w, env := doRequest(t, router, http.MethodGet, "/bookings/b-1", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})
}

func TestBookingHandler_ListBookings(t *testing.T) {
	var gotPage, gotSize int
	svc := &MockBookingService{
		ListUserBookingsFunc: func(ctx context.Context, userID string, page, pageSize int) ([]*domain.Booking, int64, error) {
			gotPage, gotSize = page, pageSize
			return []*domain.Booking{sampleBooking(domain.BookingStatusPending)}, 41, nil
		},
	}
	router := setupBookingRouter(NewBookingHandler(svc), "user-1")

	w, env := doRequest(t, router, http.MethodGet, "/bookings?page=2&page_size=500", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 100, gotSize)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(41), env.Meta.Total)
	assert.Equal(t, 1, env.Meta.TotalPages)

	var got []dto.BookingResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Len(t, got, 1)
}

func TestBookingHandler_CancelBooking(t *testing.T) {
	tests := []struct {
		name       string
		cancelErr  error
		wantStatus int
		wantCode   string
	}{
		{"cancelled", nil, http.StatusOK, ""},
		{"confirmed booking", fmt.Errorf("%w: CONFIRMED + USER_CANCELLED", domain.ErrInvalidTransition), http.StatusConflict, "INVALID_TRANSITION"},
		{"not found", domain.ErrBookingNotFound, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockBookingService{
				CancelFunc: func(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
					if tt.cancelErr != nil {
						return nil, tt.cancelErr
					}
					return sampleBooking(domain.BookingStatusCancelled), nil
				},
			}
			router := setupBookingRouter(NewBookingHandler(svc), "user-1")

			w, env := doRequest(t, router, http.MethodPost, "/bookings/b-1/cancel", nil)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantCode, env.Error.Code)
			}
		})
	}
}
