package push

import (
	"context"
	"sync"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"go.uber.org/zap"
)

// MemoryQueue implements Queue with a buffered channel
type MemoryQueue struct {
	jobs        chan *domain.PushJob
	done        chan struct{}
	maxAttempts int
	closeOnce   sync.Once
	log         *logger.Logger
}

// NewMemoryQueue creates a memory queue holding up to size jobs
func NewMemoryQueue(size, maxAttempts int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxJobAttempts
	}
	return &MemoryQueue{
		jobs:        make(chan *domain.PushJob, size),
		done:        make(chan struct{}),
		maxAttempts: maxAttempts,
		log:         logger.Get().Named("push-queue"),
	}
}

// Enqueue adds a job, blocking while the buffer is full
func (q *MemoryQueue) Enqueue(ctx context.Context, job *domain.PushJob) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume hands jobs to handler until ctx is done or the queue is closed
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.done:
			return nil
		case job := <-q.jobs:
			if err := handler(ctx, job); err != nil {
				q.requeue(job, err)
			}
		}
	}
}

func (q *MemoryQueue) requeue(job *domain.PushJob, cause error) {
	job.Attempt++
	if job.Attempt >= q.maxAttempts {
		q.log.Error("push job dropped", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(cause))
		return
	}
	select {
	case q.jobs <- job:
	default:
		q.log.Error("push queue full, job dropped", zap.String("job_id", job.ID), zap.Error(cause))
	}
}

// Len returns the number of buffered jobs
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Close stops consumers
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
