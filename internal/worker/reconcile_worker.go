package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/tourism-booking/pkg/logger"
)

// StaleReconciler verifies payment attempts left open too long
type StaleReconciler interface {
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// ReconcileWorkerConfig contains configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	// ScanInterval is the interval between scans
	ScanInterval time.Duration
	// OlderThan is how long an attempt stays open before it is polled
	OlderThan time.Duration
	// BatchSize is the number of attempts verified per scan
	BatchSize int
}

// DefaultReconcileWorkerConfig returns default configuration
func DefaultReconcileWorkerConfig() *ReconcileWorkerConfig {
	return &ReconcileWorkerConfig{
		ScanInterval: time.Minute,
		OlderThan:    10 * time.Minute,
		BatchSize:    100,
	}
}

// ReconcileWorker polls providers for payments whose webhook never arrived
type ReconcileWorker struct {
	reconciler StaleReconciler
	config     *ReconcileWorkerConfig
	log        *logger.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool

	// Stats
	totalVerified int64
	lastScanTime  time.Time
}

// ReconcileWorkerStats contains reconcile worker statistics
type ReconcileWorkerStats struct {
	IsRunning     bool      `json:"is_running"`
	TotalVerified int64     `json:"total_verified"`
	LastScanTime  time.Time `json:"last_scan_time"`
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(reconciler StaleReconciler, config *ReconcileWorkerConfig) *ReconcileWorker {
	defaults := DefaultReconcileWorkerConfig()
	if config == nil {
		config = defaults
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.OlderThan <= 0 {
		config.OlderThan = defaults.OlderThan
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	return &ReconcileWorker{
		reconciler: reconciler,
		config:     config,
		log:        logger.Get().Named("reconcile-worker"),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the reconcile worker
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reconcile worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting payment reconcile worker")

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop stops the reconcile worker
func (w *ReconcileWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Payment reconcile worker stopped")
}

func (w *ReconcileWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *ReconcileWorker) scan(ctx context.Context) {
	verified, err := w.reconciler.ReconcileStale(ctx, w.config.OlderThan, w.config.BatchSize)

	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.totalVerified += int64(verified)
	w.mu.Unlock()

	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to reconcile stale payments: %v", err))
		return
	}
	if verified > 0 {
		w.log.Info(fmt.Sprintf("Verified %d stale payment attempts", verified))
	}
}

// GetStats returns worker statistics
func (w *ReconcileWorker) GetStats() *ReconcileWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ReconcileWorkerStats{
		IsRunning:     w.running,
		TotalVerified: w.totalVerified,
		LastScanTime:  w.lastScanTime,
	}
}
