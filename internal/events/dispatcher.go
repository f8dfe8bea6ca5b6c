package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// ErrQueueFull is returned when an event is dropped because its worker
// queue has no room. Publishing never blocks the writer.
var ErrQueueFull = errors.New("events: queue full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("events: dispatcher closed")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// QueueDispatcher decouples writers from handlers. Each event is routed to
// one worker by the hash of its Key, so events with the same key are handled
// in publish order while different keys run in parallel.
type QueueDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	queues    []chan Event
	logger    *zap.Logger

	startOnce sync.Once
	closeOnce sync.Once
	closed    bool
	wg        sync.WaitGroup
}

// NewQueueDispatcher creates a dispatcher with workers queues of queueSize.
func NewQueueDispatcher(workers, queueSize int, logger *zap.Logger) *QueueDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	queues := make([]chan Event, workers)
	for i := range queues {
		queues[i] = make(chan Event, queueSize)
	}
	return &QueueDispatcher{
		listeners: make(map[EventType][]EventHandler),
		queues:    queues,
		logger:    logger,
	}
}

// Subscribe registers a handler for the given event type.
func (d *QueueDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Publish enqueues the event without waiting for handlers.
func (d *QueueDispatcher) Publish(_ context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		eventsDropped.WithLabelValues(string(event.Type)).Inc()
		return ErrClosed
	}
	queue := d.queues[d.shard(event.Key)]
	select {
	case queue <- event:
		eventsPublished.WithLabelValues(string(event.Type)).Inc()
		return nil
	default:
		eventsDropped.WithLabelValues(string(event.Type)).Inc()
		return ErrQueueFull
	}
}

// Start launches the workers. Handlers receive ctx.
func (d *QueueDispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for i, queue := range d.queues {
			d.wg.Add(1)
			go d.work(ctx, i, queue)
		}
	})
}

// Close stops accepting events and waits until queued events are handled.
func (d *QueueDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, queue := range d.queues {
			close(queue)
		}
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *QueueDispatcher) shard(key string) int {
	if len(d.queues) == 1 {
		return 0
	}
	return int(xxhash.Sum64String(key) % uint64(len(d.queues)))
}

func (d *QueueDispatcher) work(ctx context.Context, id int, queue <-chan Event) {
	defer d.wg.Done()
	for event := range queue {
		d.handle(ctx, event)
	}
	d.logger.Debug("event worker stopped", zap.Int("worker", id))
}

func (d *QueueDispatcher) handle(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		if err := d.invoke(ctx, handler, event); err != nil {
			handlerErrors.WithLabelValues(string(event.Type)).Inc()
			d.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}

func (d *QueueDispatcher) invoke(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}
