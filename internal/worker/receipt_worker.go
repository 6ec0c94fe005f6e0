package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/tourism-booking/pkg/logger"
)

// ReceiptChecker fetches push receipts and prunes dead tokens
type ReceiptChecker interface {
	CheckReceipts(ctx context.Context) (int, error)
}

// ReceiptWorker periodically checks push receipts
type ReceiptWorker struct {
	checker  ReceiptChecker
	interval time.Duration
	log      *logger.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewReceiptWorker creates a new receipt worker
func NewReceiptWorker(checker ReceiptChecker, interval time.Duration) *ReceiptWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReceiptWorker{
		checker:  checker,
		interval: interval,
		log:      logger.Get().Named("receipt-worker"),
		stopCh:   make(chan struct{}),
	}
}

// Start starts the receipt worker
func (w *ReceiptWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				pruned, err := w.checker.CheckReceipts(ctx)
				if err != nil {
					w.log.Warn(fmt.Sprintf("Failed to check push receipts: %v", err))
				}
				if pruned > 0 {
					w.log.Info(fmt.Sprintf("Pruned %d push tokens from receipts", pruned))
				}
			}
		}
	}()
}

// Stop stops the receipt worker
func (w *ReceiptWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}
