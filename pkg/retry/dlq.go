package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DLQMessage is a unit of work that exhausted its retry policy
type DLQMessage struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Key       string            `json:"key"`
	Payload   json.RawMessage   `json:"payload"`
	Error     string            `json:"error"`
	ErrorCode string            `json:"error_code,omitempty"`
	Attempts  int               `json:"attempts"`
	FailedAt  time.Time         `json:"failed_at"`
	Source    string            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DLQPublisher publishes exhausted work to a dead letter destination
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg *DLQMessage) error
}

// JSONProducer is the subset of the Kafka producer used for DLQ publishing
type JSONProducer interface {
	ProduceJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error
}

// KafkaDLQPublisher publishes DLQ messages to a Kafka topic
type KafkaDLQPublisher struct {
	producer JSONProducer
	topic    string
	source   string
}

// NewKafkaDLQPublisher creates a new Kafka DLQ publisher
func NewKafkaDLQPublisher(producer JSONProducer, topic, source string) *KafkaDLQPublisher {
	if topic == "" {
		topic = "dlq"
	}
	if source == "" {
		source = "unknown"
	}
	return &KafkaDLQPublisher{producer: producer, topic: topic, source: source}
}

// PublishToDLQ publishes a message to the dead letter topic
func (p *KafkaDLQPublisher) PublishToDLQ(ctx context.Context, msg *DLQMessage) error {
	if msg == nil {
		return fmt.Errorf("DLQ message cannot be nil")
	}
	if msg.FailedAt.IsZero() {
		msg.FailedAt = time.Now()
	}
	msg.Source = p.source

	headers := map[string]string{
		"content_type": "application/json",
		"kind":         msg.Kind,
		"error":        msg.Error,
		"attempts":     fmt.Sprintf("%d", msg.Attempts),
		"failed_at":    msg.FailedAt.Format(time.RFC3339),
		"source":       msg.Source,
	}
	if msg.ErrorCode != "" {
		headers["error_code"] = msg.ErrorCode
	}

	return p.producer.ProduceJSON(ctx, p.topic, msg.Key, msg, headers)
}

// Topic returns the dead letter topic
func (p *KafkaDLQPublisher) Topic() string {
	return p.topic
}

// NoOpDLQPublisher drops DLQ messages; callers still log them
type NoOpDLQPublisher struct{}

// NewNoOpDLQPublisher creates a new no-op DLQ publisher
func NewNoOpDLQPublisher() *NoOpDLQPublisher {
	return &NoOpDLQPublisher{}
}

// PublishToDLQ does nothing
func (p *NoOpDLQPublisher) PublishToDLQ(ctx context.Context, msg *DLQMessage) error {
	return nil
}
