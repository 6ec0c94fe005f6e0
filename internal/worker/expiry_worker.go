package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/tourism-booking/pkg/logger"
)

// BookingExpirer expires bookings abandoned before payment
type BookingExpirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// BookingExpiryWorkerConfig contains configuration for the expiry worker
type BookingExpiryWorkerConfig struct {
	// ScanInterval is the interval between scanning for abandoned bookings
	ScanInterval time.Duration
	// OlderThan is how long a booking may sit unpaid before it is expired
	OlderThan time.Duration
	// BatchSize is the number of bookings per status processed in each scan
	BatchSize int
}

// DefaultBookingExpiryWorkerConfig returns default configuration
func DefaultBookingExpiryWorkerConfig() *BookingExpiryWorkerConfig {
	return &BookingExpiryWorkerConfig{
		ScanInterval: time.Minute,
		OlderThan:    45 * time.Minute,
		BatchSize:    100,
	}
}

// BookingExpiryWorker scans for abandoned bookings and releases their capacity
type BookingExpiryWorker struct {
	expirer BookingExpirer
	config  *BookingExpiryWorkerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalExpired     int64
	lastScanTime     time.Time
	lastExpiredCount int
}

// BookingExpiryWorkerStats contains expiry worker statistics
type BookingExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
}

// NewBookingExpiryWorker creates a new expiry worker
func NewBookingExpiryWorker(expirer BookingExpirer, config *BookingExpiryWorkerConfig) *BookingExpiryWorker {
	defaults := DefaultBookingExpiryWorkerConfig()
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
	return &BookingExpiryWorker{
		expirer: expirer,
		config:  config,
		log:     logger.Get().Named("expiry-worker"),
		stopCh:  make(chan struct{}),
	}
}

// Start starts the expiry worker
func (w *BookingExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info(fmt.Sprintf("Starting booking expiry worker (expire after %s)", w.config.OlderThan))

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop stops the expiry worker
func (w *BookingExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Booking expiry worker stopped")
}

func (w *BookingExpiryWorker) loop(ctx context.Context) {
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

func (w *BookingExpiryWorker) scan(ctx context.Context) {
	expired, err := w.expirer.ExpireStale(ctx, w.config.OlderThan, w.config.BatchSize)

	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.lastExpiredCount = expired
	w.totalExpired += int64(expired)
	w.mu.Unlock()

	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to expire abandoned bookings: %v", err))
		return
	}
	if expired > 0 {
		w.log.Info(fmt.Sprintf("Expired %d abandoned bookings", expired))
	}
}

// GetStats returns worker statistics
func (w *BookingExpiryWorker) GetStats() *BookingExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &BookingExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}
