package push

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/retry"
	"github.com/redis/go-redis/v9"
)

func TestMemoryQueue_ConsumeAndRequeue(t *testing.T) {
	q := NewMemoryQueue(10, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := q.Enqueue(ctx, &domain.PushJob{ID: "ok"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := q.Enqueue(ctx, &domain.PushJob{ID: "flaky"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	var handled, flakyCalls int32
	done := make(chan struct{})
	go func() {
		_ = q.Consume(ctx, func(ctx context.Context, job *domain.PushJob) error {
			if job.ID == "flaky" {
				if atomic.AddInt32(&flakyCalls, 1) == 3 {
					close(done)
				}
				return errors.New("token store down")
			}
			atomic.AddInt32(&handled, 1)
			return nil
		})
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("flaky job was not retried")
	}

	// the exhausted job must not come back
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&flakyCalls); got != 3 {
		t.Errorf("flaky job handled %d times, want 3", got)
	}
	if got := atomic.LoadInt32(&handled); got != 1 {
		t.Errorf("ok job handled %d times, want 1", got)
	}
}

func TestMemoryQueue_Close(t *testing.T) {
	q := NewMemoryQueue(1, 1)
	_ = q.Close()
	_ = q.Close()

	if err := q.Enqueue(context.Background(), &domain.PushJob{ID: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Enqueue() after Close error = %v", err)
	}
	if err := q.Consume(context.Background(), func(context.Context, *domain.PushJob) error { return nil }); err != nil {
		t.Errorf("Consume() after Close error = %v", err)
	}
}

func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	addr := "localhost:6379"
	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		addr = host + ":6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisQueue_Integration(t *testing.T) {
	client := testRedisClient(t)

	q := NewRedisQueue(client, "test:push:"+uuid.NewString(), 2)
	defer client.Del(context.Background(), q.key, q.DeadKey())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := q.Enqueue(ctx, &domain.PushJob{ID: "job-1", Messages: []domain.PushMessage{{UserID: "u-1"}}}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	got := make(chan *domain.PushJob, 1)
	consumeCtx, stop := context.WithCancel(ctx)
	go func() {
		_ = q.Consume(consumeCtx, func(ctx context.Context, job *domain.PushJob) error {
			got <- job
			return nil
		})
	}()

	select {
	case job := <-got:
		if job.ID != "job-1" || len(job.Messages) != 1 {
			t.Errorf("unexpected job %+v", job)
		}
	case <-ctx.Done():
		t.Fatal("job was not consumed")
	}
	stop()
}

func TestRedisQueue_Integration_FailedJobWaitsOutBackoff(t *testing.T) {
	client := testRedisClient(t)

	backoff := 300 * time.Millisecond
	q := NewRedisQueue(client, "test:push:"+uuid.NewString(), 2).WithBackoff(retry.Policy{
		MaxAttempts:     2,
		InitialInterval: backoff,
		MaxInterval:     backoff,
		Multiplier:      1,
	})
	defer client.Del(context.Background(), q.key, q.DeadKey(), q.DelayedKey())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := q.Enqueue(ctx, &domain.PushJob{ID: "job-1"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	handled := make(chan time.Time, 2)
	go func() {
		_ = q.Consume(ctx, func(ctx context.Context, job *domain.PushJob) error {
			handled <- time.Now()
			return errors.New("token store down")
		})
	}()

	var first, second time.Time
	for i, at := range []*time.Time{&first, &second} {
		select {
		case *at = <-handled:
		case <-ctx.Done():
			t.Fatalf("job was handled %d times, want 2", i)
		}
	}
	if gap := second.Sub(first); gap < backoff {
		t.Errorf("job retried after %s, want at least %s", gap, backoff)
	}

	// the second failure exhausts the job
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := client.LLen(ctx, q.DeadKey()).Result(); n == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("exhausted job was not dead-lettered")
}
