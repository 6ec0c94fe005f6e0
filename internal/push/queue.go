package push

import (
	"context"
	"errors"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// DefaultMaxJobAttempts bounds how often a failed job is handed back to a worker
const DefaultMaxJobAttempts = 3

// ErrQueueClosed is returned by Enqueue after Close
var ErrQueueClosed = errors.New("push queue closed")

// Handler processes one job. A returned error re-queues the job until
// its attempts run out.
type Handler func(ctx context.Context, job *domain.PushJob) error

// Queue carries push jobs from the request path to workers
type Queue interface {
	// Enqueue adds a job
	Enqueue(ctx context.Context, job *domain.PushJob) error

	// Consume blocks, handing jobs to handler until ctx is done
	Consume(ctx context.Context, handler Handler) error

	// Close releases the queue
	Close() error
}
