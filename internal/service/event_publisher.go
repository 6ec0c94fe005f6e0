package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// EventPublisher relays domain events to an external broker. It is
// subscribed to the event bus.
type EventPublisher interface {
	Handle(ctx context.Context, event domain.Event) error
}

// EventProducer is the subset of the Kafka producer used for relaying events
type EventProducer interface {
	ProduceJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error
}

// EventMessage is the wire form of a domain event
type EventMessage struct {
	ID          string                  `json:"id"`
	Kind        domain.EventKind        `json:"kind"`
	UserID      string                  `json:"user_id,omitempty"`
	Recipients  []string                `json:"recipients,omitempty"`
	OccurredAt  time.Time               `json:"occurred_at"`
	PayloadType domain.NotificationType `json:"payload_type,omitempty"`
	Payload     json.RawMessage         `json:"payload,omitempty"`
	Source      string                  `json:"source"`
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Topic       string
	ServiceName string
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    EventProducer
	topic       string
	serviceName string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(producer EventProducer, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("kafka producer is required")
	}

	topic := "booking-events"
	serviceName := "tourism-booking"
	if cfg != nil {
		if cfg.Topic != "" {
			topic = cfg.Topic
		}
		if cfg.ServiceName != "" {
			serviceName = cfg.ServiceName
		}
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// Handle publishes event keyed by its user so per-user order is kept
func (p *KafkaEventPublisher) Handle(ctx context.Context, event domain.Event) error {
	msg := &EventMessage{
		ID:         event.ID,
		Kind:       event.Kind,
		UserID:     event.UserID,
		Recipients: event.Recipients,
		OccurredAt: event.OccurredAt,
		Source:     p.serviceName,
	}
	if event.Payload != nil {
		raw, err := domain.EncodeNotificationData(event.Payload)
		if err != nil {
			return fmt.Errorf("failed to encode %s payload: %w", event.Kind, err)
		}
		msg.PayloadType = event.Payload.Type()
		msg.Payload = raw
	}

	key := event.UserID
	if key == "" {
		key = event.ID
	}

	headers := map[string]string{
		"event_type":   string(event.Kind),
		"event_id":     event.ID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	if err := p.producer.ProduceJSON(ctx, p.topic, key, msg, headers); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Kind, err)
	}
	return nil
}

// Topic returns the destination topic
func (p *KafkaEventPublisher) Topic() string {
	return p.topic
}

// NoOpEventPublisher is used when Kafka is disabled or unreachable
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// Handle is a no-op
func (p *NoOpEventPublisher) Handle(ctx context.Context, event domain.Event) error {
	return nil
}
