package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/push"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"go.uber.org/zap"
)

// BatchSender delivers a batch of push messages
type BatchSender interface {
	SendBatch(ctx context.Context, messages []push.Message) (*push.Result, error)
}

// PushWorkerConfig contains configuration for the push worker
type PushWorkerConfig struct {
	// Workers is the number of goroutines consuming the queue
	Workers int
}

// DefaultPushWorkerConfig returns default configuration
func DefaultPushWorkerConfig() *PushWorkerConfig {
	return &PushWorkerConfig{Workers: 4}
}

// PushWorker consumes push jobs off the request path
type PushWorker struct {
	queue   push.Queue
	sender  BatchSender
	config  *PushWorkerConfig
	log     *logger.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
	messagesSent  atomic.Int64
}

// PushWorkerStats contains push worker statistics
type PushWorkerStats struct {
	IsRunning     bool  `json:"is_running"`
	JobsProcessed int64 `json:"jobs_processed"`
	JobsFailed    int64 `json:"jobs_failed"`
	MessagesSent  int64 `json:"messages_sent"`
}

// NewPushWorker creates a new push worker
func NewPushWorker(queue push.Queue, sender BatchSender, config *PushWorkerConfig) *PushWorker {
	if config == nil {
		config = DefaultPushWorkerConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &PushWorker{
		queue:  queue,
		sender: sender,
		config: config,
		log:    logger.Get().Named("push-worker"),
	}
}

// Start starts the consumer goroutines
func (w *PushWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("push worker already running")
	}
	w.running = true

	ctx, w.cancel = context.WithCancel(ctx)
	w.log.Info(fmt.Sprintf("Starting push worker with %d consumers", w.config.Workers))

	for i := 0; i < w.config.Workers; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			if err := w.queue.Consume(ctx, w.handle); err != nil {
				w.log.Error("push consumer stopped", zap.Int("consumer", id), zap.Error(err))
			}
		}(i)
	}
	return nil
}

// Stop stops the consumers and waits for in-flight jobs
func (w *PushWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	w.log.Info("Stopping push worker")
	cancel()
	w.wg.Wait()
	w.log.Info("Push worker stopped")
}

// handle delivers one job. Errors are confined to the job.
func (w *PushWorker) handle(ctx context.Context, job *domain.PushJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("push job %s panicked: %v", job.ID, r)
		}
		if err != nil {
			w.jobsFailed.Add(1)
		}
	}()

	result, err := w.sender.SendBatch(ctx, job.Messages)
	if err != nil {
		w.log.Warn("push job failed",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		return err
	}

	w.jobsProcessed.Add(1)
	w.messagesSent.Add(int64(result.Sent))
	w.log.Debug("push job delivered",
		zap.String("job_id", job.ID),
		zap.String("event_id", job.EventID),
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("pruned", result.Pruned),
		zap.Int("dropped", result.Dropped))
	return nil
}

// GetStats returns worker statistics
func (w *PushWorker) GetStats() *PushWorkerStats {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()

	return &PushWorkerStats{
		IsRunning:     running,
		JobsProcessed: w.jobsProcessed.Load(),
		JobsFailed:    w.jobsFailed.Load(),
		MessagesSent:  w.messagesSent.Load(),
	}
}
