package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/di"
	"github.com/prohmpiriya/tourism-booking/internal/worker"
	"github.com/prohmpiriya/tourism-booking/pkg/config"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
)

const serviceName = "payment-reconciler"

func main() {
	once := flag.Bool("once", false, "run a single scan and exit")
	limit := flag.Int("limit", 100, "attempts verified and bookings expired per scan")
	configPath := flag.String("config", "", "optional .env file, environment still overrides it")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.App.Storage == "memory" {
		log.Fatalf("payment-reconciler needs shared storage, APP_STORAGE=memory only works embedded in the API")
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: serviceName,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn(fmt.Sprintf("Tracing disabled: %v", err))
	}

	infra, err := di.OpenInfrastructure(ctx, cfg)
	if err != nil {
		appLog.Fatal(err.Error())
	}
	defer infra.Close()

	container, err := di.NewContainer(ctx, cfg, infra)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to build container: %v", err))
	}
	defer container.Close()

	// Settled bookings publish events; the notifier turns them into notifications and pushes
	container.Bus.Start(ctx)

	if *once {
		verified, err := container.PaymentService.ReconcileStale(ctx, cfg.Payment.ReconcileAfter, *limit)
		if err != nil {
			appLog.Error(fmt.Sprintf("Reconcile failed after %d verifications: %v", verified, err))
			return
		}
		appLog.Info(fmt.Sprintf("Verified %d stale payment attempts", verified))

		expired, err := container.ExpiryService.ExpireStale(ctx, cfg.Booking.ExpireAfter, *limit)
		if err != nil {
			appLog.Error(fmt.Sprintf("Expiry failed after %d bookings: %v", expired, err))
			return
		}
		appLog.Info(fmt.Sprintf("Expired %d abandoned bookings", expired))
		return
	}

	container.ReconcileWorker = worker.NewReconcileWorker(container.PaymentService, &worker.ReconcileWorkerConfig{
		ScanInterval: cfg.Payment.ReconcileInterval,
		OlderThan:    cfg.Payment.ReconcileAfter,
		BatchSize:    *limit,
	})
	if err := container.ReconcileWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start reconcile worker: %v", err))
	}
	container.ExpiryWorker = worker.NewBookingExpiryWorker(container.ExpiryService, &worker.BookingExpiryWorkerConfig{
		ScanInterval: cfg.Booking.ExpiryInterval,
		OlderThan:    cfg.Booking.ExpireAfter,
		BatchSize:    *limit,
	})
	if err := container.ExpiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
	}
	appLog.Info(fmt.Sprintf("Payment reconciler started (interval: %s, older than: %s, expire after: %s)",
		cfg.Payment.ReconcileInterval, cfg.Payment.ReconcileAfter, cfg.Booking.ExpireAfter))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.ReconcileWorker.Stop()
	container.ExpiryWorker.Stop()
	stats := container.ReconcileWorker.GetStats()
	expiry := container.ExpiryWorker.GetStats()
	appLog.Info(fmt.Sprintf("Payment reconciler stopped (verified: %d, expired: %d)", stats.TotalVerified, expiry.TotalExpired))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = telemetry.Shutdown(shutdownCtx)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadWithPath(path)
}
