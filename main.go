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
	"github.com/prohmpiriya/tourism-booking/pkg/middleware"
	"github.com/prohmpiriya/tourism-booking/pkg/telemetry"
)

const serviceName = "tourism-booking-api"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(&logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: serviceName,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Tourism Booking API...")

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

	container.Bus.Start(ctx)

	if cfg.Push.EmbeddedWorker {
		if err := container.PushWorker.Start(ctx); err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to start push worker: %v", err))
		}
		container.ReceiptWorker.Start(ctx)
		if err := container.ReconcileWorker.Start(ctx); err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to start reconcile worker: %v", err))
		}
		if err := container.ExpiryWorker.Start(ctx); err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
		}
		appLog.Info("Embedded push, reconcile and expiry workers started")
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(container)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		appLog.Info(fmt.Sprintf("Tourism Booking API listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	// Stop producers before consumers so queued events still reach the push queue
	container.ReconcileWorker.Stop()
	container.ExpiryWorker.Stop()
	container.Bus.Close()
	container.PushWorker.Stop()
	container.ReceiptWorker.Stop()
	_ = container.PushQueue.Close()
	cancel()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Warn(fmt.Sprintf("Failed to flush traces: %v", err))
	}
	appLog.Info("Server exited gracefully")
}

func setupRouter(c *di.Container) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.TracingMiddleware(serviceName))
	router.Use(metrics.MetricsMiddleware())

	// Health check endpoints
	router.GET("/health", c.HealthHandler.Health)
	router.GET("/ready", c.HealthHandler.Ready)
	router.GET("/metrics", metrics.PrometheusHandler())

	v1 := router.Group("/api/v1")

	// Provider callbacks carry no user identity
	v1.POST("/payments/webhook/:provider", c.PaymentHandler.Webhook)

	authed := v1.Group("")
	authed.Use(middleware.UserID())

	idempotent := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if c.Infra.Redis == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{
			middleware.IdempotencyMiddleware(middleware.DefaultIdempotencyConfig(c.Infra.Redis.Client())),
			h,
		}
	}

	bookings := authed.Group("/bookings")
	{
		bookings.POST("", idempotent(c.BookingHandler.Reserve)...)
		bookings.GET("", c.BookingHandler.ListBookings)
		bookings.GET("/:id", c.BookingHandler.GetBooking)
		bookings.POST("/:id/cancel", idempotent(c.BookingHandler.CancelBooking)...)
	}

	payments := authed.Group("/payments")
	{
		payments.POST("/init", idempotent(c.PaymentHandler.InitPayment)...)
		payments.GET("/verify/:reference", c.PaymentHandler.VerifyPayment)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", c.NotificationHandler.List)
		notifications.GET("/stats", c.NotificationHandler.Stats)
		notifications.PATCH("/read-all", c.NotificationHandler.MarkAllRead)
		notifications.PATCH("/:id/read", c.NotificationHandler.MarkRead)
		notifications.DELETE("/:id", c.NotificationHandler.Delete)
		notifications.PUT("/push-token", c.NotificationHandler.RegisterPushToken)
		notifications.DELETE("/push-token", c.NotificationHandler.UnregisterPushToken)
	}

	// Service-to-service events, exposed on the internal network only
	internal := router.Group("/internal/v1")
	{
		internal.POST("/events/review-posted", c.AnnouncementHandler.ReviewPosted)
		internal.POST("/broadcasts", c.AnnouncementHandler.Broadcast)
	}

	return router
}
