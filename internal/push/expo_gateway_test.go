package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpoGateway_IsValidToken(t *testing.T) {
	g := NewExpoGateway(nil)

	tests := []struct {
		token string
		want  bool
	}{
		{"ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]", true},
		{"ExpoPushToken[abc]", true},
		{"f47ac10b-58cc-4372-a567-0e02b2c3d479", true},
		{"ExponentPushToken[]", false},
		{"fcm:abc", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.IsValidToken(tt.token), tt.token)
	}
}

func TestExpoGateway_Send(t *testing.T) {
	var received []OutboundMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/push/send", r.URL.Path)
		assert.Equal(t, "Bearer expo-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"data":[{"status":"ok","id":"t-1"},{"status":"error","message":"not registered","details":{"error":"DeviceNotRegistered"}}]}`))
	}))
	defer srv.Close()

	g := NewExpoGateway(&ExpoConfig{BaseURL: srv.URL, AccessToken: "expo-token"})
	tickets, err := g.Send(context.Background(), []OutboundMessage{
		{To: "ExponentPushToken[a]", Title: "Hi"},
		{To: "ExponentPushToken[b]", Title: "Hi"},
	})
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, "t-1", tickets[0].ID)
	assert.Equal(t, ErrorDeviceNotRegistered, tickets[1].ErrorCode())
	assert.Equal(t, "default", received[0].Sound)
}

func TestExpoGateway_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"errors":[{"code":"X","message":"nope"}]}`))
			}))
			defer srv.Close()

			g := NewExpoGateway(&ExpoConfig{BaseURL: srv.URL})
			_, err := g.Send(context.Background(), []OutboundMessage{{To: "ExponentPushToken[a]"}})
			require.Error(t, err)
			assert.Equal(t, tt.wantRetryable, retry.IsRetryable(err))
			assert.Equal(t, !tt.wantRetryable, retry.IsPermanent(err))
		})
	}
}

func TestExpoGateway_Receipts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/push/getReceipts", r.URL.Path)
		var body struct {
			IDs []string `json:"ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"t-1", "t-2"}, body.IDs)
		_, _ = w.Write([]byte(`{"data":{"t-1":{"status":"ok"},"t-2":{"status":"error","details":{"error":"DeviceNotRegistered"}}}}`))
	}))
	defer srv.Close()

	g := NewExpoGateway(&ExpoConfig{BaseURL: srv.URL})
	receipts, err := g.Receipts(context.Background(), []string{"t-1", "t-2"})
	require.NoError(t, err)
	assert.Equal(t, TicketStatusOK, receipts["t-1"].Status)
	assert.Equal(t, ErrorDeviceNotRegistered, receipts["t-2"].ErrorCode())
}

func TestTicket_Err(t *testing.T) {
	assert.NoError(t, Ticket{Status: TicketStatusOK, ID: "t-1"}.Err())

	gone := Ticket{Status: TicketStatusError, Message: "not a valid token", Details: &ErrorDetails{Error: ErrorDeviceNotRegistered}}
	assert.ErrorIs(t, gone.Err(), domain.ErrDeviceNotRegistered)

	big := Ticket{Status: TicketStatusError, Message: "too big", Details: &ErrorDetails{Error: ErrorMessageTooBig}}
	assert.NotErrorIs(t, big.Err(), domain.ErrDeviceNotRegistered)
	assert.Contains(t, big.Err().Error(), ErrorMessageTooBig)
}
