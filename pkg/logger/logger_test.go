package logger

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level       string
		development bool
		want        zapcore.Level
	}{
		{"debug", false, zapcore.DebugLevel},
		{"INFO", false, zapcore.InfoLevel},
		{"warning", false, zapcore.WarnLevel},
		{"error", true, zapcore.ErrorLevel},
		{"development", true, zapcore.DebugLevel},
		{"production", false, zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := parseLevel(tt.level, tt.development); got != tt.want {
				t.Errorf("parseLevel(%q, %v) = %v, want %v", tt.level, tt.development, got, tt.want)
			}
		})
	}
}

func TestInitAndGet(t *testing.T) {
	if err := Init(&Config{Level: "debug", ServiceName: "test"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	l := Get()
	if l == nil {
		t.Fatal("expected logger")
	}
	if l.serviceName != "test" {
		t.Errorf("expected service name 'test', got %q", l.serviceName)
	}

	// context helpers must not panic without a span
	l.InfoContext(context.Background(), "hello")
	l.With().Named("child").ErrorContext(context.Background(), "child")
}
