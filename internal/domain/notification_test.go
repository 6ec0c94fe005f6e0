package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNotification(t *testing.T) {
	n, err := NewNotification("u-1", &BookingData{BookingID: "b-1", Status: BookingStatusConfirmed}, "Booking confirmed", "See you there")
	require.NoError(t, err)
	assert.Equal(t, NotificationTypeBooking, n.Type)
	assert.False(t, n.IsRead)
	assert.NotEmpty(t, n.ID)

	_, err = NewNotification("", &SystemData{Severity: "info"}, "t", "m")
	assert.ErrorIs(t, err, ErrInvalidUserID)

	_, err = NewNotification("u-1", nil, "t", "m")
	assert.ErrorIs(t, err, ErrInvalidNotificationData)

	_, err = NewNotification("u-1", &ReviewData{ReviewID: "r-1", Rating: 9}, "t", "m")
	assert.ErrorIs(t, err, ErrInvalidNotificationData)
}

func TestDecodeNotificationData(t *testing.T) {
	raw, err := EncodeNotificationData(&PaymentData{BookingID: "b-1", Reference: "b-1-1", Amount: 500, Currency: "ETB", Status: PaymentStatusSucceeded})
	require.NoError(t, err)

	data, err := DecodeNotificationData(NotificationTypePayment, raw)
	require.NoError(t, err)
	payment, ok := data.(*PaymentData)
	require.True(t, ok)
	assert.Equal(t, int64(500), payment.Amount)

	t.Run("tag mismatch", func(t *testing.T) {
		_, err := DecodeNotificationData(NotificationTypeSocial, raw)
		assert.True(t, errors.Is(err, ErrInvalidNotificationData))
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := DecodeNotificationData("WEATHER", []byte(`{}`))
		assert.ErrorIs(t, err, ErrInvalidNotificationData)
	})

	t.Run("null data", func(t *testing.T) {
		data, err := DecodeNotificationData(NotificationTypeSystem, []byte("null"))
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := DecodeNotificationData(NotificationTypeBooking, []byte(`{"status":"PENDING"}`))
		assert.ErrorIs(t, err, ErrInvalidNotificationData)
	})
}

func TestPushPayload(t *testing.T) {
	tests := []struct {
		data NotificationData
		keys []string
	}{
		{&BookingData{BookingID: "b-1"}, []string{"type", "bookingId"}},
		{&PaymentData{Reference: "ref"}, []string{"type", "reference"}},
		{&ReviewData{ReviewID: "r", PlaceID: "p", Rating: 4}, []string{"type", "reviewId", "placeId"}},
		{&SocialData{ActorID: "a", Action: "follow"}, []string{"type", "actorId"}},
		{&PromotionData{PromoCode: "SUMMER"}, []string{"type", "promoCode"}},
	}

	for _, tt := range tests {
		payload := tt.data.PushPayload()
		assert.Equal(t, string(tt.data.Type()), payload["type"])
		for _, k := range tt.keys {
			assert.Contains(t, payload, k)
		}
	}
}

func TestNotification_JSON(t *testing.T) {
	n, err := NewNotification("u-1", &ReviewData{ReviewID: "r-1", PlaceID: "p-1", Rating: 5, AuthorID: "u-2"}, "New review", "5 stars")
	require.NoError(t, err)

	raw, err := json.Marshal(n)
	require.NoError(t, err)

	var decoded Notification
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, n.ID, decoded.ID)
	review, ok := decoded.Data.(*ReviewData)
	require.True(t, ok)
	assert.Equal(t, 5, review.Rating)
}
