package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// getTestConfig returns config for testing
func getTestConfig() *Config {
	cfg := DefaultConfig()

	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	if password := os.Getenv("TEST_REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}

	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", cfg.Host)
	}
	if cfg.Port != 6379 {
		t.Errorf("Expected port 6379, got %d", cfg.Port)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("Expected max retries 3, got %d", cfg.MaxRetries)
	}
	if cfg.Addr() != "localhost:6379" {
		t.Errorf("Expected addr 'localhost:6379', got '%s'", cfg.Addr())
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := &Config{
		Host:          "invalid-host-that-does-not-exist",
		Port:          9999,
		MaxRetries:    0,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   500 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewClient(ctx, cfg); err == nil {
		t.Error("Expected error for unreachable redis, got nil")
	}
}

func TestScriptSHA(t *testing.T) {
	a := Script{Name: "a", Source: "return 1"}
	b := Script{Name: "b", Source: "return 2"}

	if len(a.SHA()) != 40 {
		t.Errorf("Expected SHA1 length 40, got %d", len(a.SHA()))
	}
	if a.SHA() != (Script{Name: "other", Source: "return 1"}).SHA() {
		t.Error("Same source should produce same SHA regardless of name")
	}
	if a.SHA() == b.SHA() {
		t.Error("Different sources should produce different SHAs")
	}
}

func TestIsNoScriptError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("some error"), false},
		{errors.New("NOSCRIPT No matching script. Please use EVAL."), true},
	}

	for _, tt := range tests {
		if got := isNoScriptError(tt.err); got != tt.expected {
			t.Errorf("isNoScriptError(%v) = %v, want %v", tt.err, got, tt.expected)
		}
	}
}

func TestClient_Run_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, getTestConfig())
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	defer client.Close()

	echo := Script{Name: "echo", Source: "return ARGV[1]"}
	got, err := client.Run(ctx, echo, nil, "hello").Text()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got != "hello" {
		t.Errorf("Expected 'hello', got %q", got)
	}

	// a flushed script cache must be recovered transparently
	if err := client.Client().ScriptFlush(ctx).Err(); err != nil {
		t.Fatalf("ScriptFlush failed: %v", err)
	}
	if got, err = client.Run(ctx, echo, nil, "again").Text(); err != nil || got != "again" {
		t.Errorf("Run after flush = %q, %v", got, err)
	}
}
