package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithPath_Defaults(t *testing.T) {
	path := writeEnvFile(t, "APP_NAME=tourism-test\n")

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, "tourism-test", cfg.App.Name)
	assert.Equal(t, "postgres", cfg.App.Storage)
	assert.Equal(t, "redis", cfg.Booking.CapacityBackend)
	assert.Equal(t, "ETB", cfg.Booking.Currency)
	assert.Equal(t, "chapa", cfg.Payment.Provider)
	assert.Equal(t, 15*time.Second, cfg.Payment.ProviderTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Payment.InitiatedTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Payment.CheckoutTTL)
	assert.Equal(t, 45*time.Minute, cfg.Booking.ExpireAfter)
	assert.Equal(t, time.Minute, cfg.Booking.ExpiryInterval)
	assert.Equal(t, 100, cfg.Push.ChunkSize)
	assert.Equal(t, "redis", cfg.Push.QueueBackend)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadWithPath_FileValues(t *testing.T) {
	path := writeEnvFile(t, `APP_NAME=tourism-test
APP_STORAGE=memory
BOOKING_CAPACITY_BACKEND=memory
PUSH_QUEUE_BACKEND=rabbitmq
PAYMENT_PROVIDER=mock
KAFKA_BROKERS=b1:9092, b2:9092
PUSH_CHUNK_SIZE=50
`)

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.App.Storage)
	assert.Equal(t, "memory", cfg.Booking.CapacityBackend)
	assert.Equal(t, "rabbitmq", cfg.Push.QueueBackend)
	assert.Equal(t, "mock", cfg.Payment.Provider)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 50, cfg.Push.ChunkSize)
}

func TestLoadWithPath_EnvOverridesFile(t *testing.T) {
	path := writeEnvFile(t, "APP_NAME=tourism-test\nPUSH_WORKERS=2\n")
	t.Setenv("PUSH_WORKERS", "8")

	cfg, err := LoadWithPath(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Push.Workers)
}

func TestLoadWithPath_MissingFile(t *testing.T) {
	_, err := LoadWithPath(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Name: "tourism-booking", Environment: "development", Storage: "postgres"},
		Server:  ServerConfig{Port: 8080},
		Booking: BookingConfig{CapacityBackend: "redis", MaxQuantity: 20},
		Payment: PaymentConfig{Provider: "chapa"},
		Push:    PushConfig{QueueBackend: "redis", ChunkSize: 100},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: "app name"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server port"},
		{name: "bad storage", mutate: func(c *Config) { c.App.Storage = "mongo" }, wantErr: "APP_STORAGE"},
		{name: "bad capacity backend", mutate: func(c *Config) { c.Booking.CapacityBackend = "etcd" }, wantErr: "BOOKING_CAPACITY_BACKEND"},
		{name: "bad queue backend", mutate: func(c *Config) { c.Push.QueueBackend = "sqs" }, wantErr: "PUSH_QUEUE_BACKEND"},
		{name: "bad provider", mutate: func(c *Config) { c.Payment.Provider = "paypal" }, wantErr: "PAYMENT_PROVIDER"},
		{name: "stripe without key", mutate: func(c *Config) { c.Payment.Provider = "stripe" }, wantErr: "STRIPE_SECRET_KEY"},
		{
			name: "chapa without key in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
			},
			wantErr: "CHAPA_SECRET_KEY",
		},
		{
			name: "mock in production",
			mutate: func(c *Config) {
				c.App.Environment = "production"
				c.Payment.Provider = "mock"
			},
			wantErr: "not allowed in production",
		},
		{name: "chunk too large", mutate: func(c *Config) { c.Push.ChunkSize = 101 }, wantErr: "PUSH_CHUNK_SIZE"},
		{name: "zero max quantity", mutate: func(c *Config) { c.Booking.MaxQuantity = 0 }, wantErr: "BOOKING_MAX_QUANTITY"},
		{
			name: "expiry before checkout closes",
			mutate: func(c *Config) {
				c.Booking.ExpireAfter = 20 * time.Minute
				c.Payment.CheckoutTTL = 30 * time.Minute
			},
			wantErr: "BOOKING_EXPIRE_AFTER",
		},
		{
			name: "expiry after checkout closes",
			mutate: func(c *Config) {
				c.Booking.ExpireAfter = 45 * time.Minute
				c.Payment.CheckoutTTL = 30 * time.Minute
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
