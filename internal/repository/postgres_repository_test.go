package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/database"
)

func getPostgresPool(t *testing.T) *pgxpool.Pool {
	cfg := database.DefaultPostgresConfig()
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if password := os.Getenv("TEST_POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("TEST_POSTGRES_DB"); name != "" {
		cfg.Database = name
	}

	ctx := context.Background()
	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	t.Cleanup(db.Close)

	schema, err := os.ReadFile("../../migrations/001_init.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration: %v", err)
	}
	if _, err := db.Pool().Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply migration: %v", err)
	}
	return db.Pool()
}

func seedResource(t *testing.T, repo *PostgresResourceRepository, capacity int) *domain.Resource {
	res := &domain.Resource{
		ID:        "res-" + uuid.NewString()[:8],
		Kind:      domain.ResourceKindEvent,
		Name:      "Timket Festival",
		UnitPrice: 50000,
		Currency:  domain.DefaultCurrency,
		Capacity:  capacity,
	}
	if err := repo.Save(context.Background(), res); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return res
}

func TestPostgresCapacityCounter_ConcurrentReserve(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	pool := getPostgresPool(t)
	res := seedResource(t, NewPostgresResourceRepository(pool), 10)
	counter := NewPostgresCapacityCounter(pool)

	var wg sync.WaitGroup
	var ok, exceeded int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := counter.Reserve(ctx, uuid.NewString(), res.ID, 1)
			switch {
			case err == nil:
				atomic.AddInt64(&ok, 1)
			case errors.Is(err, domain.ErrCapacityExceeded):
				atomic.AddInt64(&exceeded, 1)
			}
		}()
	}
	wg.Wait()

	if ok != 10 || exceeded != 40 {
		t.Errorf("ok=%d exceeded=%d, want 10/40", ok, exceeded)
	}
	available, err := counter.Available(ctx, res.ID)
	if err != nil || available != 0 {
		t.Errorf("Available() = %d, %v, want 0", available, err)
	}
}

func TestPostgresCapacityCounter_ReleaseOnce(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	pool := getPostgresPool(t)
	res := seedResource(t, NewPostgresResourceRepository(pool), 2)
	counter := NewPostgresCapacityCounter(pool)

	bookingID := uuid.NewString()
	if _, err := counter.Reserve(ctx, bookingID, res.ID, 2); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if _, err := counter.Reserve(ctx, bookingID, res.ID, 1); err == nil {
		t.Error("second Reserve() for the same booking should fail")
	}

	first, _ := counter.Release(ctx, bookingID)
	second, _ := counter.Release(ctx, bookingID)
	if !first || second {
		t.Errorf("Release() = %v then %v, want true then false", first, second)
	}
	available, _ := counter.Available(ctx, res.ID)
	if available != 2 {
		t.Errorf("available = %d, want 2", available)
	}
}

func TestPostgresPaymentRepository_OneOpenAttempt(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	pool := getPostgresPool(t)
	res := seedResource(t, NewPostgresResourceRepository(pool), 5)
	bookings := NewPostgresBookingRepository(pool)
	payments := NewPostgresPaymentRepository(pool)

	quote, _ := domain.Price(res, 1)
	booking, err := domain.NewBooking(uuid.NewString(), "user-1", res.ID, 1, quote)
	if err != nil {
		t.Fatalf("NewBooking() error = %v", err)
	}
	if err := bookings.Create(ctx, booking); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first := domain.NewPaymentAttempt(booking, "mock", time.Now())
	if err := payments.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second := domain.NewPaymentAttempt(booking, "mock", time.Now().Add(time.Millisecond))
	if err := payments.Create(ctx, second); !errors.Is(err, domain.ErrPaymentAlreadyInProgress) {
		t.Fatalf("second Create() error = %v", err)
	}

	if ok, err := payments.MarkPending(ctx, first.Reference, "prov-1", "https://checkout"); err != nil || !ok {
		t.Fatalf("MarkPending() = %v, %v", ok, err)
	}
	if ok, _ := payments.CompareAndSetStatus(ctx, first.Reference, domain.PaymentStatusPending, domain.PaymentStatusSucceeded, ""); !ok {
		t.Fatal("CompareAndSetStatus() should win from PENDING")
	}
	if ok, _ := payments.CompareAndSetStatus(ctx, first.Reference, domain.PaymentStatusPending, domain.PaymentStatusFailed, "late"); ok {
		t.Error("a settled attempt must not change again")
	}

	got, err := payments.GetByReference(ctx, first.Reference)
	if err != nil || got.Status != domain.PaymentStatusSucceeded || got.ProviderRef != "prov-1" {
		t.Errorf("GetByReference() = %+v, %v", got, err)
	}
}

func TestPostgresNotificationRepository_MarkAllReadScoping(t *testing.T) {
	skipIfNoIntegration(t)

	ctx := context.Background()
	repo := NewPostgresNotificationRepository(getPostgresPool(t))
	alice, bob := "user-"+uuid.NewString()[:8], "user-"+uuid.NewString()[:8]

	for _, user := range []string{alice, alice, bob} {
		n, err := domain.NewNotification(user, &domain.SystemData{Severity: "info"}, "Maintenance", "Tonight")
		if err != nil {
			t.Fatalf("NewNotification() error = %v", err)
		}
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	flipped, err := repo.MarkAllRead(ctx, alice)
	if err != nil || flipped != 2 {
		t.Fatalf("MarkAllRead() = %d, %v, want 2", flipped, err)
	}
	stats, _ := repo.Stats(ctx, bob)
	if stats.Unread != 1 || stats.Total != 1 {
		t.Errorf("bob stats = %+v, want 1/1", stats)
	}

	list, total, err := repo.List(ctx, alice, 10, 0, false)
	if err != nil || total != 2 || len(list) != 2 {
		t.Fatalf("List() = %d/%d, %v", len(list), total, err)
	}
	if _, ok := list[0].Data.(*domain.SystemData); !ok {
		t.Errorf("decoded data type = %T", list[0].Data)
	}
}
