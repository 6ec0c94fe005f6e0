package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/internal/di"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/pkg/config"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
)

const serviceName = "push-worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Push.QueueBackend == "memory" {
		log.Fatalf("push-worker needs a shared queue, PUSH_QUEUE_BACKEND=memory only works embedded in the API")
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
	appLog.Info("Starting push worker...")

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

	if err := container.PushWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to start push worker: %v", err))
	}
	container.ReceiptWorker.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", container.HealthHandler.Health)
	router.GET("/ready", container.HealthHandler.Ready)
	router.GET("/metrics", metrics.PrometheusHandler())
	router.GET("/stats", func(c *gin.Context) {
		stats := gin.H{"worker": container.PushWorker.GetStats()}
		if infra.DB != nil {
			pool := infra.DB.Stats()
			stats["db_pool"] = gin.H{
				"total":    pool.TotalConns(),
				"idle":     pool.IdleConns(),
				"acquired": pool.AcquiredConns(),
			}
		}
		c.JSON(http.StatusOK, stats)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
	}
	go func() {
		appLog.Info(fmt.Sprintf("Push worker admin server listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error(fmt.Sprintf("Admin server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down push worker...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	container.PushWorker.Stop()
	container.ReceiptWorker.Stop()
	container.Close()
	cancel()

	_ = telemetry.Shutdown(shutdownCtx)

	stats := container.PushWorker.GetStats()
	appLog.Info(fmt.Sprintf("Push worker stopped (jobs: %d, failed: %d, messages: %d)",
		stats.JobsProcessed, stats.JobsFailed, stats.MessagesSent))
}
