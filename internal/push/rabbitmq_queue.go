package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/rabbitmq"
	"github.com/prohmpiriya/tourism-booking/pkg/retry"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQQueue implements Queue on a durable queue. A failed job is held
// unacked for its backoff and then republished; exhausted jobs are rejected
// into the dead-letter exchange.
type RabbitMQQueue struct {
	client      *rabbitmq.Client
	maxAttempts int
	backoff     retry.Policy
	log         *logger.Logger
}

// NewRabbitMQQueue creates a RabbitMQ-backed queue
func NewRabbitMQQueue(client *rabbitmq.Client, maxAttempts int) *RabbitMQQueue {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxJobAttempts
	}
	return &RabbitMQQueue{
		client:      client,
		maxAttempts: maxAttempts,
		backoff:     retry.DefaultPolicy(),
		log:         logger.Get().Named("push-queue"),
	}
}

// WithBackoff sets how long a failed job waits before it is republished
func (q *RabbitMQQueue) WithBackoff(p retry.Policy) *RabbitMQQueue {
	q.backoff = p
	return q
}

// Enqueue publishes a persistent message
func (q *RabbitMQQueue) Enqueue(ctx context.Context, job *domain.PushJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal push job: %w", err)
	}
	if err := q.client.Publish(ctx, data, map[string]string{"job_id": job.ID}); err != nil {
		return fmt.Errorf("failed to publish push job: %w", err)
	}
	return nil
}

// Consume handles deliveries until ctx is done or the channel closes
func (q *RabbitMQQueue) Consume(ctx context.Context, handler Handler) error {
	deliveries, err := q.client.Deliveries(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			q.handle(ctx, d, handler)
		}
	}
}

func (q *RabbitMQQueue) handle(ctx context.Context, d amqp.Delivery, handler Handler) {
	var job domain.PushJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.log.Error("rejecting malformed push job", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, &job); err == nil {
		_ = d.Ack(false)
		return
	} else if job.Attempt+1 >= q.maxAttempts {
		q.log.Error("push job exhausted", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt+1), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	// republish with the bumped attempt, then ack the original
	job.Attempt++
	if err := q.backoff.Wait(ctx, job.Attempt); err != nil {
		_ = d.Nack(false, true)
		return
	}
	if err := q.Enqueue(context.WithoutCancel(ctx), &job); err != nil {
		q.log.Error("failed to requeue push job", zap.String("job_id", job.ID), zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// Close closes the underlying connection
func (q *RabbitMQQueue) Close() error {
	return q.client.Close()
}

var _ Queue = (*RabbitMQQueue)(nil)
