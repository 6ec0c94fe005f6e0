package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(id string) domain.Event {
	return domain.Event{ID: id, Kind: domain.EventKindBookingCreated, UserID: "u-1"}
}

func TestBus_DeliversInOrderToAllSubscribers(t *testing.T) {
	bus := New(100)

	var mu sync.Mutex
	var first, second []string
	bus.Subscribe("first", func(ctx context.Context, e domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		first = append(first, e.ID)
		return nil
	})
	bus.Subscribe("second", func(ctx context.Context, e domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		second = append(second, e.ID)
		return nil
	})
	bus.Start(context.Background())

	var want []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("e-%02d", i)
		want = append(want, id)
		require.NoError(t, bus.Publish(context.Background(), event(id)))
	}
	bus.Close()

	assert.Equal(t, want, first)
	assert.Equal(t, want, second)
}

func TestBus_HandlerFailuresAreIsolated(t *testing.T) {
	bus := New(10)

	var delivered []string
	bus.Subscribe("panics", func(ctx context.Context, e domain.Event) error {
		panic("boom")
	})
	bus.Subscribe("errors", func(ctx context.Context, e domain.Event) error {
		return errors.New("handler failed")
	})
	bus.Subscribe("records", func(ctx context.Context, e domain.Event) error {
		delivered = append(delivered, e.ID)
		return nil
	})
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), event("a")))
	require.NoError(t, bus.Publish(context.Background(), event("b")))
	bus.Close()

	assert.Equal(t, []string{"a", "b"}, delivered)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := New(2)
	// not started: nothing drains the buffer

	require.NoError(t, bus.Publish(context.Background(), event("1")))
	require.NoError(t, bus.Publish(context.Background(), event("2")))

	done := make(chan error, 1)
	go func() { done <- bus.Publish(context.Background(), event("3")) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrBusFull)
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	bus := New(1)
	bus.Start(context.Background())
	bus.Close()
	bus.Close()

	assert.ErrorIs(t, bus.Publish(context.Background(), event("late")), ErrBusClosed)
}

func TestBus_DrainsOnContextCancel(t *testing.T) {
	bus := New(10)
	got := make(chan string, 10)
	bus.Subscribe("collect", func(ctx context.Context, e domain.Event) error {
		got <- e.ID
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), event("x")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Start(ctx)
	bus.Close()

	select {
	case id := <-got:
		assert.Equal(t, "x", id)
	default:
		t.Fatal("buffered event was not delivered")
	}
}
