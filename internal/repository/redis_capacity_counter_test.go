package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	pkgredis "github.com/prohmpiriya/tourism-booking/pkg/redis"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}
}

func getRedisClient(t *testing.T) *pkgredis.Client {
	cfg := pkgredis.DefaultConfig()
	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	cfg.DB = 15

	client, err := pkgredis.NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCapacityCounter_ReserveRelease(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client := getRedisClient(t)
	counter := NewRedisCapacityCounter(client)
	if err := counter.LoadScripts(ctx); err != nil {
		t.Fatalf("LoadScripts() error = %v", err)
	}

	resourceID := "res-" + uuid.NewString()
	bookingID := uuid.NewString()
	t.Cleanup(func() {
		client.Client().Del(ctx, availableKey(resourceID), holdKey(bookingID))
	})

	if _, err := counter.Reserve(ctx, bookingID, resourceID, 1); !errors.Is(err, ErrCapacityNotInitialized) {
		t.Fatalf("Reserve() before init error = %v", err)
	}

	initialized, err := counter.InitCapacity(ctx, resourceID, 3)
	if err != nil || !initialized {
		t.Fatalf("InitCapacity() = %v, %v", initialized, err)
	}
	initialized, _ = counter.InitCapacity(ctx, resourceID, 100)
	if initialized {
		t.Error("InitCapacity() must not overwrite an existing counter")
	}

	remaining, err := counter.Reserve(ctx, bookingID, resourceID, 2)
	if err != nil || remaining != 1 {
		t.Fatalf("Reserve() = %d, %v, want 1", remaining, err)
	}
	if _, err := counter.Reserve(ctx, bookingID, resourceID, 1); !errors.Is(err, ErrHoldExists) {
		t.Errorf("duplicate Reserve() error = %v", err)
	}
	if _, err := counter.Reserve(ctx, uuid.NewString(), resourceID, 2); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Errorf("Reserve() beyond capacity error = %v", err)
	}

	released, err := counter.Release(ctx, bookingID)
	if err != nil || !released {
		t.Fatalf("Release() = %v, %v", released, err)
	}
	released, _ = counter.Release(ctx, bookingID)
	if released {
		t.Error("second Release() should report false")
	}

	available, _ := counter.Available(ctx, resourceID)
	if available != 3 {
		t.Errorf("available = %d, want 3", available)
	}
}

func TestRedisCapacityCounter_ConcurrentReserve(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	client := getRedisClient(t)
	counter := NewRedisCapacityCounter(client)
	_ = counter.LoadScripts(ctx)

	resourceID := "res-" + uuid.NewString()
	if err := counter.SetCapacity(ctx, resourceID, 10); err != nil {
		t.Fatalf("SetCapacity() error = %v", err)
	}

	var wg sync.WaitGroup
	var ok int64
	var mu sync.Mutex
	holds := []string{availableKey(resourceID)}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.NewString()
			if _, err := counter.Reserve(ctx, id, resourceID, 1); err == nil {
				atomic.AddInt64(&ok, 1)
				mu.Lock()
				holds = append(holds, holdKey(id))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	t.Cleanup(func() { client.Client().Del(ctx, holds...) })

	if ok != 10 {
		t.Errorf("successful reservations = %d, want 10", ok)
	}
	available, _ := counter.Available(ctx, resourceID)
	if available != 0 {
		t.Errorf("available = %d, want 0", available)
	}
}
