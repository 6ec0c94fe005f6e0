package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers       []string
	ClientID      string
	MaxRetries    int
	RetryInterval time.Duration
	// MaxBufferedRecords bounds the in-memory produce buffer
	MaxBufferedRecords int
	LingerMs           int
}

// Message is a record to produce
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Producer wraps a franz-go client for synchronous produce
type Producer struct {
	client *kgo.Client
}

// NewProducer creates a producer and waits until a broker answers
func NewProducer(ctx context.Context, cfg *ProducerConfig) (*Producer, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.MaxBufferedRecords > 0 {
		opts = append(opts, kgo.MaxBufferedRecords(cfg.MaxBufferedRecords))
	}
	if cfg.LingerMs > 0 {
		opts = append(opts, kgo.ProducerLinger(time.Duration(cfg.LingerMs)*time.Millisecond))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				client.Close()
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
		if lastErr = client.Ping(ctx); lastErr == nil {
			return &Producer{client: client}, nil
		}
	}

	client.Close()
	return nil, fmt.Errorf("failed to reach kafka after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// Produce writes one record and waits for the broker ack
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	record := &kgo.Record{
		Topic:     msg.Topic,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	for k, v := range msg.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// ProduceJSON marshals data and produces it
func (p *Producer) ProduceJSON(ctx context.Context, topic, key string, data interface{}, headers map[string]string) error {
	value, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.Produce(ctx, &Message{
		Topic:     topic,
		Key:       []byte(key),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	})
}

// Close flushes and closes the client
func (p *Producer) Close() {
	if p.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.client.Flush(ctx)
		p.client.Close()
	}
}
