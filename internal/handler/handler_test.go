package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/service"
	"github.com/prohmpiriya/tourism-booking/pkg/response"
	"github.com/stretchr/testify/require"
)

// MockBookingService is a mock implementation of BookingService for testing
type MockBookingService struct {
	ReserveFunc          func(ctx context.Context, userID, resourceID string, quantity int) (*domain.Booking, error)
	TransitionFunc       func(ctx context.Context, bookingID string, event domain.BookingEvent) (*domain.Booking, error)
	GetBookingFunc       func(ctx context.Context, bookingID, userID string) (*domain.Booking, error)
	ListUserBookingsFunc func(ctx context.Context, userID string, page, pageSize int) ([]*domain.Booking, int64, error)
	CancelFunc           func(ctx context.Context, bookingID, userID string) (*domain.Booking, error)
}

func (m *MockBookingService) Reserve(ctx context.Context, userID, resourceID string, quantity int) (*domain.Booking, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, userID, resourceID, quantity)
	}
	return nil, nil
}

func (m *MockBookingService) Transition(ctx context.Context, bookingID string, event domain.BookingEvent) (*domain.Booking, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, bookingID, event)
	}
	return nil, nil
}

func (m *MockBookingService) GetBooking(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	if m.GetBookingFunc != nil {
		return m.GetBookingFunc(ctx, bookingID, userID)
	}
	return nil, nil
}

func (m *MockBookingService) ListUserBookings(ctx context.Context, userID string, page, pageSize int) ([]*domain.Booking, int64, error) {
	if m.ListUserBookingsFunc != nil {
		return m.ListUserBookingsFunc(ctx, userID, page, pageSize)
	}
	return nil, 0, nil
}

func (m *MockBookingService) Cancel(ctx context.Context, bookingID, userID string) (*domain.Booking, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, bookingID, userID)
	}
	return nil, nil
}

// MockPaymentService is a mock implementation of PaymentService for testing
type MockPaymentService struct {
	InitPaymentFunc    func(ctx context.Context, bookingID, userID string, opts *service.InitPaymentOptions) (*domain.PaymentAttempt, error)
	VerifyPaymentFunc  func(ctx context.Context, reference string) (*service.VerifyResult, error)
	HandleWebhookFunc  func(ctx context.Context, providerName string, payload []byte, headers http.Header) (*service.VerifyResult, error)
	ReconcileStaleFunc func(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

func (m *MockPaymentService) InitPayment(ctx context.Context, bookingID, userID string, opts *service.InitPaymentOptions) (*domain.PaymentAttempt, error) {
	if m.InitPaymentFunc != nil {
		return m.InitPaymentFunc(ctx, bookingID, userID, opts)
	}
	return nil, nil
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, reference string) (*service.VerifyResult, error) {
	if m.VerifyPaymentFunc != nil {
		return m.VerifyPaymentFunc(ctx, reference)
	}
	return &service.VerifyResult{}, nil
}

func (m *MockPaymentService) HandleWebhook(ctx context.Context, providerName string, payload []byte, headers http.Header) (*service.VerifyResult, error) {
	if m.HandleWebhookFunc != nil {
		return m.HandleWebhookFunc(ctx, providerName, payload, headers)
	}
	return &service.VerifyResult{}, nil
}

func (m *MockPaymentService) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if m.ReconcileStaleFunc != nil {
		return m.ReconcileStaleFunc(ctx, olderThan, limit)
	}
	return 0, nil
}

// MockNotificationService is a mock implementation of NotificationService for testing
type MockNotificationService struct {
	CreateFunc      func(ctx context.Context, userID string, data domain.NotificationData, title, message string) (*domain.Notification, error)
	ListFunc        func(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*domain.Notification, int64, error)
	MarkReadFunc    func(ctx context.Context, id, userID string) error
	MarkAllReadFunc func(ctx context.Context, userID string) (int64, error)
	StatsFunc       func(ctx context.Context, userID string) (*domain.NotificationStats, error)
	DeleteFunc      func(ctx context.Context, id, userID string) error
}

func (m *MockNotificationService) Create(ctx context.Context, userID string, data domain.NotificationData, title, message string) (*domain.Notification, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, data, title, message)
	}
	return nil, nil
}

func (m *MockNotificationService) List(ctx context.Context, userID string, page, pageSize int, unreadOnly bool) ([]*domain.Notification, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID, page, pageSize, unreadOnly)
	}
	return nil, 0, nil
}

func (m *MockNotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, id, userID)
	}
	return nil
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockNotificationService) Stats(ctx context.Context, userID string) (*domain.NotificationStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, userID)
	}
	return &domain.NotificationStats{}, nil
}

func (m *MockNotificationService) Delete(ctx context.Context, id, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id, userID)
	}
	return nil
}

// MockPushTokenService is a mock implementation of PushTokenService for testing
type MockPushTokenService struct {
	RegisterFunc   func(ctx context.Context, userID, token string) error
	UnregisterFunc func(ctx context.Context, userID string) error
}

func (m *MockPushTokenService) Register(ctx context.Context, userID, token string) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, userID, token)
	}
	return nil
}

func (m *MockPushTokenService) Unregister(ctx context.Context, userID string) error {
	if m.UnregisterFunc != nil {
		return m.UnregisterFunc(ctx, userID)
	}
	return nil
}

func (m *MockPushTokenService) Get(ctx context.Context, userID string) (*domain.PushToken, error) {
	return nil, domain.ErrPushTokenNotFound
}

func (m *MockPushTokenService) Prune(ctx context.Context, userID, token string) (bool, error) {
	return false, nil
}

// testEnvelope mirrors response.Response with a raw data payload
type testEnvelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorData `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// withUser stands in for middleware.UserID in tests
func withUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	}
}

func newTestRouter(userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(withUser(userID))
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, *testEnvelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	env := &testEnvelope{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), env), w.Body.String())
	}
	return w, env
}
