package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/eventbus"
	"github.com/prohmpiriya/tourism-booking/internal/gateway"
	"github.com/prohmpiriya/tourism-booking/internal/handler"
	"github.com/prohmpiriya/tourism-booking/internal/push"
	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/internal/service"
	"github.com/prohmpiriya/tourism-booking/internal/worker"
	"github.com/prohmpiriya/tourism-booking/pkg/config"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/retry"
)

const (
	eventBusBuffer  = 1024
	memoryQueueSize = 1024
	receiptTTL      = 24 * time.Hour
)

// Container holds all dependencies of the booking, payment and notification pipeline
type Container struct {
	Config *config.Config
	Infra  *Infrastructure

	// Repositories
	BookingRepo      repository.BookingRepository
	ResourceRepo     repository.ResourceRepository
	PaymentRepo      repository.PaymentRepository
	NotificationRepo repository.NotificationRepository
	PushTokenRepo    repository.PushTokenRepository
	EventDedup       repository.EventDedupRepository
	Counter          repository.CapacityCounter

	// Events
	Bus            *eventbus.Bus
	EventPublisher service.EventPublisher

	// Services
	BookingService      service.BookingService
	PaymentService      service.PaymentService
	NotificationService service.NotificationService
	PushTokenService    service.PushTokenService
	AnnouncementService service.AnnouncementService
	ExpiryService       service.ExpiryService
	Notifier            *service.Notifier

	// Push delivery
	PushQueue  push.Queue
	Dispatcher *push.Dispatcher

	// Workers
	PushWorker      *worker.PushWorker
	ReceiptWorker   *worker.ReceiptWorker
	ReconcileWorker *worker.ReconcileWorker
	ExpiryWorker    *worker.BookingExpiryWorker

	// Handlers
	HealthHandler       *handler.HealthHandler
	BookingHandler      *handler.BookingHandler
	PaymentHandler      *handler.PaymentHandler
	NotificationHandler *handler.NotificationHandler
	AnnouncementHandler *handler.AnnouncementHandler
}

// NewContainer wires the pipeline over already opened infrastructure
func NewContainer(ctx context.Context, cfg *config.Config, infra *Infrastructure) (*Container, error) {
	if infra == nil {
		infra = &Infrastructure{}
	}
	c := &Container{Config: cfg, Infra: infra}

	if err := c.initRepositories(ctx); err != nil {
		return nil, err
	}
	if err := c.initPush(); err != nil {
		return nil, err
	}
	if err := c.initServices(); err != nil {
		return nil, err
	}
	c.initWorkers()

	c.HealthHandler = handler.NewHealthHandler(infra.HealthCheckers())
	c.BookingHandler = handler.NewBookingHandler(c.BookingService)
	c.PaymentHandler = handler.NewPaymentHandler(c.PaymentService)
	c.NotificationHandler = handler.NewNotificationHandler(c.NotificationService, c.PushTokenService)
	c.AnnouncementHandler = handler.NewAnnouncementHandler(c.AnnouncementService)

	return c, nil
}

func (c *Container) initRepositories(ctx context.Context) error {
	cfg := c.Config

	switch cfg.App.Storage {
	case "postgres":
		if c.Infra.DB == nil {
			return fmt.Errorf("postgres storage selected but no database connection")
		}
		pool := c.Infra.DB.Pool()
		c.BookingRepo = repository.NewPostgresBookingRepository(pool)
		c.ResourceRepo = repository.NewPostgresResourceRepository(pool)
		c.PaymentRepo = repository.NewPostgresPaymentRepository(pool)
		c.NotificationRepo = repository.NewPostgresNotificationRepository(pool)
		c.PushTokenRepo = repository.NewPostgresPushTokenRepository(pool)
	default:
		bookings := repository.NewMemoryBookingRepository()
		c.BookingRepo = bookings
		c.ResourceRepo = repository.NewMemoryResourceRepository(bookings)
		c.PaymentRepo = repository.NewMemoryPaymentRepository()
		c.NotificationRepo = repository.NewMemoryNotificationRepository()
		c.PushTokenRepo = repository.NewMemoryPushTokenRepository()
	}

	switch cfg.Booking.CapacityBackend {
	case "redis":
		if c.Infra.Redis == nil {
			return fmt.Errorf("redis capacity backend selected but no redis connection")
		}
		counter := repository.NewRedisCapacityCounter(c.Infra.Redis)
		if err := counter.LoadScripts(ctx); err != nil {
			logger.Get().Warn(fmt.Sprintf("Failed to pre-load Lua scripts: %v", err))
		}
		c.Counter = counter
	case "postgres":
		if c.Infra.DB == nil {
			return fmt.Errorf("postgres capacity backend selected but no database connection")
		}
		c.Counter = repository.NewPostgresCapacityCounter(c.Infra.DB.Pool())
	default:
		c.Counter = repository.NewMemoryCapacityCounter()
	}

	if c.Infra.Redis != nil {
		c.EventDedup = repository.NewRedisEventDedupRepository(c.Infra.Redis)
	} else {
		c.EventDedup = repository.NewMemoryEventDedupRepository()
	}
	return nil
}

func (c *Container) initPush() error {
	cfg := c.Config.Push

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.MaxRetries + 1
	if cfg.InitialBackoff > 0 {
		policy.InitialInterval = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		policy.MaxInterval = cfg.MaxBackoff
	}

	// failed jobs back off with the same policy the dispatcher retries gateway calls with
	switch cfg.QueueBackend {
	case "redis":
		if c.Infra.Redis == nil {
			return fmt.Errorf("redis push queue selected but no redis connection")
		}
		c.PushQueue = push.NewRedisQueue(c.Infra.Redis.Client(), cfg.QueueName, cfg.MaxRetries).WithBackoff(policy)
	case "rabbitmq":
		if c.Infra.RabbitMQ == nil {
			return fmt.Errorf("rabbitmq push queue selected but no rabbitmq connection")
		}
		c.PushQueue = push.NewRabbitMQQueue(c.Infra.RabbitMQ, cfg.MaxRetries).WithBackoff(policy)
	default:
		c.PushQueue = push.NewMemoryQueue(memoryQueueSize, cfg.MaxRetries)
	}

	var dlq retry.DLQPublisher = retry.NewNoOpDLQPublisher()
	if c.Infra.Kafka != nil {
		dlq = retry.NewKafkaDLQPublisher(c.Infra.Kafka, c.Config.Kafka.DLQTopic, c.Config.App.Name)
	}

	expo := push.NewExpoGateway(&push.ExpoConfig{
		BaseURL:     cfg.ExpoBaseURL,
		AccessToken: cfg.ExpoAccessToken,
	})
	receipts := push.NewReceiptTracker(cfg.ReceiptDelay, receiptTTL)
	c.Dispatcher = push.NewDispatcher(expo, c.PushTokenRepo, receipts, dlq, &push.DispatcherConfig{
		ChunkSize:      cfg.ChunkSize,
		GatewayTimeout: cfg.GatewayTimeout,
		Retry:          policy,
	})
	c.PushTokenService = service.NewPushTokenService(c.PushTokenRepo, expo)
	return nil
}

func (c *Container) initServices() error {
	cfg := c.Config

	c.Bus = eventbus.New(eventBusBuffer)

	syncer := service.NewCapacitySyncer(c.ResourceRepo, c.Counter)
	c.BookingService = service.NewBookingService(c.BookingRepo, c.ResourceRepo, c.Counter, syncer, c.Bus, &service.BookingServiceConfig{
		MaxQuantity:     cfg.Booking.MaxQuantity,
		DefaultCurrency: cfg.Booking.Currency,
	})

	providers, err := c.buildProviders()
	if err != nil {
		return err
	}
	c.PaymentService = service.NewPaymentService(c.PaymentRepo, c.BookingService, providers, &service.PaymentServiceConfig{
		DefaultProvider:  cfg.Payment.Provider,
		ReturnURL:        cfg.Payment.ReturnURL,
		CallbackURL:      cfg.Payment.CallbackURL,
		InitiatedTimeout: cfg.Payment.InitiatedTimeout,
		CheckoutTTL:      cfg.Payment.CheckoutTTL,
	})
	c.ExpiryService = service.NewExpiryService(c.BookingRepo, c.PaymentRepo, c.BookingService, c.PaymentService)

	c.NotificationService = service.NewNotificationService(c.NotificationRepo)
	c.Notifier = service.NewNotifier(c.NotificationService, c.EventDedup, c.PushQueue, cfg.Push.DedupTTL)
	c.Bus.Subscribe("notifier", c.Notifier.Handle)
	c.AnnouncementService = service.NewAnnouncementService(c.Bus)

	c.EventPublisher = service.NewNoOpEventPublisher()
	if c.Infra.Kafka != nil {
		publisher, err := service.NewKafkaEventPublisher(c.Infra.Kafka, &service.EventPublisherConfig{
			Topic:       cfg.Kafka.EventsTopic,
			ServiceName: cfg.App.Name,
		})
		if err != nil {
			return fmt.Errorf("failed to create event publisher: %w", err)
		}
		c.EventPublisher = publisher
		c.Bus.Subscribe("kafka-export", publisher.Handle)
	}
	return nil
}

// buildProviders creates the configured provider first, then every other
// provider whose credentials are present so its webhook route stays live.
func (c *Container) buildProviders() ([]gateway.Provider, error) {
	cfg := c.Config.Payment
	base := gateway.ProviderConfig{
		ReturnURL:       cfg.ReturnURL,
		CallbackURL:     cfg.CallbackURL,
		Timeout:         cfg.ProviderTimeout,
		MockSuccessRate: cfg.MockSuccessRate,
	}
	credentials := map[string]gateway.ProviderConfig{
		string(gateway.ProviderTypeChapa):  withKeys(base, cfg.ChapaSecretKey, cfg.ChapaWebhookSecret, cfg.ChapaBaseURL),
		string(gateway.ProviderTypeStripe): withKeys(base, cfg.StripeSecretKey, cfg.StripeWebhookSecret, ""),
		string(gateway.ProviderTypeMock):   base,
	}

	primaryCfg := credentials[cfg.Provider]
	primary, err := gateway.NewProvider(cfg.Provider, &primaryCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment provider %s: %w", cfg.Provider, err)
	}
	providers := []gateway.Provider{primary}

	for _, name := range []string{string(gateway.ProviderTypeChapa), string(gateway.ProviderTypeStripe)} {
		extra := credentials[name]
		if name == cfg.Provider || extra.SecretKey == "" {
			continue
		}
		p, err := gateway.NewProvider(name, &extra)
		if err != nil {
			logger.Get().Warn(fmt.Sprintf("Skipping payment provider %s: %v", name, err))
			continue
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func withKeys(base gateway.ProviderConfig, secret, webhookSecret, baseURL string) gateway.ProviderConfig {
	base.SecretKey = secret
	base.WebhookSecret = webhookSecret
	base.BaseURL = baseURL
	return base
}

func (c *Container) initWorkers() {
	cfg := c.Config

	c.PushWorker = worker.NewPushWorker(c.PushQueue, c.Dispatcher, &worker.PushWorkerConfig{
		Workers: cfg.Push.Workers,
	})
	c.ReceiptWorker = worker.NewReceiptWorker(c.Dispatcher, cfg.Push.ReceiptDelay)
	c.ReconcileWorker = worker.NewReconcileWorker(c.PaymentService, &worker.ReconcileWorkerConfig{
		ScanInterval: cfg.Payment.ReconcileInterval,
		OlderThan:    cfg.Payment.ReconcileAfter,
		BatchSize:    100,
	})
	c.ExpiryWorker = worker.NewBookingExpiryWorker(c.ExpiryService, &worker.BookingExpiryWorkerConfig{
		ScanInterval: cfg.Booking.ExpiryInterval,
		OlderThan:    cfg.Booking.ExpireAfter,
		BatchSize:    100,
	})
}

// Close stops the bus and the push queue
func (c *Container) Close() {
	if c.Bus != nil {
		c.Bus.Close()
	}
	if c.PushQueue != nil {
		_ = c.PushQueue.Close()
	}
}
