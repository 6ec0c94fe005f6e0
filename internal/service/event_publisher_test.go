package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockEventProducer struct {
	ProduceJSONFunc func(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error
}

func (m *MockEventProducer) ProduceJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error {
	if m.ProduceJSONFunc != nil {
		return m.ProduceJSONFunc(ctx, topic, key, data, headers)
	}
	return nil
}

func TestNewKafkaEventPublisher(t *testing.T) {
	_, err := NewKafkaEventPublisher(nil, nil)
	assert.Error(t, err)

	p, err := NewKafkaEventPublisher(&MockEventProducer{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "booking-events", p.Topic())

	p, err = NewKafkaEventPublisher(&MockEventProducer{}, &EventPublisherConfig{Topic: "tourism.events"})
	require.NoError(t, err)
	assert.Equal(t, "tourism.events", p.Topic())
}

func TestKafkaEventPublisher_Handle(t *testing.T) {
	var (
		gotTopic, gotKey string
		gotHeaders       map[string]string
		gotBody          []byte
	)
	producer := &MockEventProducer{
		ProduceJSONFunc: func(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error {
			gotTopic, gotKey, gotHeaders = topic, key, headers
			var err error
			gotBody, err = json.Marshal(data)
			return err
		},
	}
	p, err := NewKafkaEventPublisher(producer, &EventPublisherConfig{ServiceName: "api"})
	require.NoError(t, err)

	event := domain.NewBookingEvent(&domain.Booking{
		ID: "b-1", UserID: "user-1", ResourceID: "tour-1", Quantity: 2,
		Status: domain.BookingStatusConfirmed, UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, p.Handle(context.Background(), event))

	assert.Equal(t, "booking-events", gotTopic)
	assert.Equal(t, "user-1", gotKey)
	assert.Equal(t, string(domain.EventKindBookingConfirmed), gotHeaders["event_type"])
	assert.Equal(t, "booking:b-1:CONFIRMED", gotHeaders["event_id"])

	var msg struct {
		Kind        string `json:"kind"`
		PayloadType string `json:"payload_type"`
		Payload     struct {
			BookingID string `json:"booking_id"`
		} `json:"payload"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &msg))
	assert.Equal(t, "BookingConfirmed", msg.Kind)
	assert.Equal(t, "BOOKING", msg.PayloadType)
	assert.Equal(t, "b-1", msg.Payload.BookingID)
	assert.Equal(t, "api", msg.Source)
}

func TestKafkaEventPublisher_BroadcastKeyedByEventID(t *testing.T) {
	var gotKey string
	p, err := NewKafkaEventPublisher(&MockEventProducer{
		ProduceJSONFunc: func(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error {
			gotKey = key
			return nil
		},
	}, nil)
	require.NoError(t, err)

	event := domain.NewBroadcastEvent("m-1", []string{"a", "b"}, &domain.SystemData{Severity: "info"}, time.Now())
	require.NoError(t, p.Handle(context.Background(), event))
	assert.Equal(t, "system:m-1", gotKey)
}

func TestKafkaEventPublisher_ProducerError(t *testing.T) {
	p, err := NewKafkaEventPublisher(&MockEventProducer{
		ProduceJSONFunc: func(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error {
			return errors.New("broker down")
		},
	}, nil)
	require.NoError(t, err)

	err = p.Handle(context.Background(), confirmedEvent())
	assert.ErrorContains(t, err, "broker down")
}

func TestNoOpEventPublisher(t *testing.T) {
	assert.NoError(t, NewNoOpEventPublisher().Handle(context.Background(), confirmedEvent()))
}
