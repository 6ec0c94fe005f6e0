package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"go.uber.org/zap"
)

// DefaultBufferSize is the number of events the bus holds before dropping
const DefaultBufferSize = 4096

// ErrBusFull is returned by Publish when the buffer is full
var ErrBusFull = errors.New("event bus buffer full")

// ErrBusClosed is returned by Publish after Close
var ErrBusClosed = errors.New("event bus closed")

// Handler reacts to an event. Errors are logged and never reach the publisher.
type Handler func(ctx context.Context, event domain.Event) error

// Publisher is the publishing side of the bus
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

type subscriber struct {
	name    string
	handler Handler
}

// Bus is an in-process event bus. A single dispatch goroutine delivers
// events in publish order to every subscriber.
type Bus struct {
	events      chan domain.Event
	subscribers []subscriber
	log         *logger.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

// New creates a bus with the given buffer size
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		events: make(chan domain.Event, bufferSize),
		log:    logger.Get().Named("eventbus"),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a handler. Subscribers must be registered before Start.
func (b *Bus) Subscribe(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, subscriber{name: name, handler: handler})
}

// Publish enqueues an event without blocking
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		metrics.RecordBusEvent(string(event.Kind), "dropped")
		b.log.Error("event published after close", zap.String("event_id", event.ID))
		return ErrBusClosed
	}

	select {
	case b.events <- event:
		metrics.RecordBusEvent(string(event.Kind), "published")
		return nil
	default:
		metrics.RecordBusEvent(string(event.Kind), "dropped")
		b.log.ErrorContext(ctx, "event bus full, event dropped",
			zap.String("event_id", event.ID),
			zap.String("kind", string(event.Kind)),
		)
		return ErrBusFull
	}
}

// Start runs the dispatch loop in the background until Close or ctx is done
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *Bus) run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			b.drain(context.WithoutCancel(ctx))
			return
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(ctx, event)
		}
	}
}

// drain delivers events still buffered at shutdown
func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.events:
			if !ok {
				return
			}
			b.dispatch(ctx, event)
		default:
			return
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := b.safeHandle(ctx, s, event); err != nil {
			metrics.RecordHandlerError(s.name)
			b.log.Error("event handler failed",
				zap.String("subscriber", s.name),
				zap.String("event_id", event.ID),
				zap.String("kind", string(event.Kind)),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) safeHandle(ctx context.Context, s subscriber, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return s.handler(ctx, event)
}

// Close stops accepting events, delivers what is buffered and waits for the
// dispatch loop to exit
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	started := b.started
	close(b.events)
	b.mu.Unlock()

	if started {
		<-b.done
	}
}

var _ Publisher = (*Bus)(nil)
