package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/handler"
	"github.com/prohmpiriya/tourism-booking/pkg/config"
	"github.com/prohmpiriya/tourism-booking/pkg/database"
	"github.com/prohmpiriya/tourism-booking/pkg/kafka"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/rabbitmq"
	pkgredis "github.com/prohmpiriya/tourism-booking/pkg/redis"
)

// Infrastructure holds the external connections of a binary. A nil field
// means the backend is not used by the current configuration.
type Infrastructure struct {
	DB       *database.PostgresDB
	Redis    *pkgredis.Client
	RabbitMQ *rabbitmq.Client
	Kafka    *kafka.Producer
}

// NeedsPostgres reports whether any configured backend lives in Postgres
func NeedsPostgres(cfg *config.Config) bool {
	return cfg.App.Storage == "postgres" || cfg.Booking.CapacityBackend == "postgres"
}

// NeedsRedis reports whether any configured backend lives in Redis
func NeedsRedis(cfg *config.Config) bool {
	return cfg.Booking.CapacityBackend == "redis" || cfg.Push.QueueBackend == "redis"
}

// OpenInfrastructure connects to the backends the configuration selects.
// Kafka is optional: a failed connection is logged and events are not exported.
func OpenInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	log := logger.Get()
	infra := &Infrastructure{}

	if NeedsPostgres(cfg) {
		dbCfg := &database.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.DBName,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
			MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnectTimeout:  5 * time.Second,
			MaxRetries:      3,
			RetryInterval:   time.Second,
		}
		db, err := database.NewPostgres(ctx, dbCfg)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		infra.DB = db
		log.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", dbCfg.MinConns, dbCfg.MaxConns))
	}

	if NeedsRedis(cfg) {
		redisCfg := &pkgredis.Config{
			Host:          cfg.Redis.Host,
			Port:          cfg.Redis.Port,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			PoolSize:      cfg.Redis.PoolSize,
			MinIdleConns:  cfg.Redis.MinIdleConns,
			DialTimeout:   cfg.Redis.DialTimeout,
			ReadTimeout:   cfg.Redis.ReadTimeout,
			WriteTimeout:  cfg.Redis.WriteTimeout,
			MaxRetries:    3,
			RetryInterval: 100 * time.Millisecond,
		}
		client, err := pkgredis.NewClient(ctx, redisCfg)
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		infra.Redis = client
		log.Info(fmt.Sprintf("Redis connected (pool: %d, minIdle: %d)", redisCfg.PoolSize, redisCfg.MinIdleConns))
	}

	if cfg.Push.QueueBackend == "rabbitmq" {
		client, err := rabbitmq.NewClient(ctx, &rabbitmq.Config{
			URL:           cfg.RabbitMQ.URL,
			Exchange:      cfg.RabbitMQ.Exchange,
			Queue:         cfg.RabbitMQ.Queue,
			DLX:           cfg.RabbitMQ.DLX,
			Prefetch:      cfg.RabbitMQ.Prefetch,
			MaxRetries:    3,
			RetryInterval: time.Second,
		})
		if err != nil {
			infra.Close()
			return nil, fmt.Errorf("rabbitmq connection failed: %w", err)
		}
		infra.RabbitMQ = client
		log.Info("RabbitMQ connected")
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:       cfg.Kafka.Brokers,
			ClientID:      cfg.Kafka.ClientID,
			MaxRetries:    3,
			RetryInterval: time.Second,
		})
		if err != nil {
			log.Warn(fmt.Sprintf("Kafka connection failed, events will not be exported: %v", err))
		} else {
			infra.Kafka = producer
			log.Info("Kafka producer connected")
		}
	}

	return infra, nil
}

// HealthCheckers returns the readiness checks of the open connections
func (i *Infrastructure) HealthCheckers() map[string]handler.HealthChecker {
	checkers := make(map[string]handler.HealthChecker)
	if i.DB != nil {
		checkers["database"] = i.DB
	}
	if i.Redis != nil {
		checkers["redis"] = i.Redis
	}
	if i.RabbitMQ != nil {
		checkers["rabbitmq"] = i.RabbitMQ
	}
	return checkers
}

// Close closes every open connection
func (i *Infrastructure) Close() {
	if i.Kafka != nil {
		i.Kafka.Close()
	}
	if i.RabbitMQ != nil {
		_ = i.RabbitMQ.Close()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
