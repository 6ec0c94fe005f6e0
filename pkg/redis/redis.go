package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/tourism-booking/pkg/retry"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Retry configuration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultConfig returns default Redis configuration
func DefaultConfig() *Config {
	return &Config{
		Host:          "localhost",
		Port:          6379,
		PoolSize:      100,
		MinIdleConns:  10,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	}
}

// Addr returns the Redis address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Client wraps redis.Client with Lua script caching
type Client struct {
	client  *redis.Client
	config  *Config
	scripts sync.Map // script name -> sha
}

// NewClient creates a new Redis client, retrying the initial ping
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	policy := retry.Policy{
		MaxAttempts:     cfg.MaxRetries + 1,
		InitialInterval: cfg.RetryInterval,
		MaxInterval:     cfg.RetryInterval,
		Multiplier:      1,
	}
	res := retry.Do(ctx, policy, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}, nil)
	if res.Err != nil {
		client.Close()
		if res.LastError != nil {
			return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", res.Attempts, res.LastError)
		}
		return nil, res.Err
	}

	return &Client{client: client, config: cfg}, nil
}

// Client returns the underlying redis.Client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Ping checks if Redis connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck performs a health check on Redis
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := c.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	if result != "PONG" {
		return fmt.Errorf("redis health check unexpected response: %s", result)
	}
	return nil
}

// --- Lua scripts ---

// Script is a named Lua script
type Script struct {
	Name   string
	Source string
}

// SHA returns the SHA1 Redis uses to address the script
func (s Script) SHA() string {
	h := sha1.New()
	h.Write([]byte(s.Source))
	return hex.EncodeToString(h.Sum(nil))
}

// LoadScripts loads scripts into the Redis script cache
func (c *Client) LoadScripts(ctx context.Context, scripts ...Script) error {
	for _, s := range scripts {
		sha, err := c.client.ScriptLoad(ctx, s.Source).Result()
		if err != nil {
			return fmt.Errorf("failed to load script %s: %w", s.Name, err)
		}
		c.scripts.Store(s.Name, sha)
	}
	return nil
}

// Run executes a script by SHA and reloads it when the server answers NOSCRIPT
func (c *Client) Run(ctx context.Context, s Script, keys []string, args ...interface{}) *redis.Cmd {
	sha, ok := c.scripts.Load(s.Name)
	if !ok {
		if err := c.LoadScripts(ctx, s); err != nil {
			cmd := redis.NewCmd(ctx)
			cmd.SetErr(err)
			return cmd
		}
		sha, _ = c.scripts.Load(s.Name)
	}

	result := c.client.EvalSha(ctx, sha.(string), keys, args...)
	if isNoScriptError(result.Err()) {
		if err := c.LoadScripts(ctx, s); err != nil {
			return result
		}
		sha, _ = c.scripts.Load(s.Name)
		return c.client.EvalSha(ctx, sha.(string), keys, args...)
	}
	return result
}

func isNoScriptError(err error) bool {
	return err != nil && redis.HasErrorPrefix(err, "NOSCRIPT")
}
