package event

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/heavenprotocol/publisher/sdk/log"
)

// Handler is a function that processes events.
type Handler func(Event)

// Bus manages event subscriptions and dispatching. Handlers run on a bounded
// pool of goroutines and receive their own copy of the event.
type Bus struct {
	subscribers      map[EventType][]Handler
	wildcardHandlers []Handler
	mu               sync.RWMutex
	logger           log.Logger
	workerPool       chan struct{}
	maxWorkers       int
}

// NewBus creates a new event bus.
func NewBus(logger log.Logger, maxWorkers int) *Bus {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if maxWorkers <= 0 {
		maxWorkers = 50
	}
	return &Bus{
		subscribers: make(map[EventType][]Handler),
		logger:      logger,
		workerPool:  make(chan struct{}, maxWorkers),
		maxWorkers:  maxWorkers,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug(context.Background(), "subscribing handler", "eventType", eventType)
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wildcardHandlers = append(b.wildcardHandlers, handler)
}

// Publish sends an event to all relevant subscribers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, handler := range b.subscribers[event.Type] {
		b.dispatch(handler, event)
	}
	for _, handler := range b.wildcardHandlers {
		b.dispatch(handler, event)
	}
}

// dispatch runs one handler on the pool with panic recovery. A panicking
// handler must not take the publish flow down with it.
func (b *Bus) dispatch(handler Handler, event Event) {
	b.workerPool <- struct{}{}

	go func() {
		defer func() {
			<-b.workerPool
			if r := recover(); r != nil {
				b.logger.Error(context.Background(), "event handler panicked",
					"error", r,
					"eventType", event.Type,
					"stackTrace", string(debug.Stack()),
				)
			}
		}()

		handler(copyEvent(event))
	}()
}

// copyEvent deep-copies the event so concurrent handlers cannot race on the
// data map.
func copyEvent(e Event) Event {
	copied := e
	copied.Data = make(EventData, len(e.Data))
	for k, v := range e.Data {
		copied.Data[k] = v
	}
	return copied
}

// WaitForHandlers blocks until every in-flight handler has finished.
func (b *Bus) WaitForHandlers() {
	for i := 0; i < b.maxWorkers; i++ {
		b.workerPool <- struct{}{}
	}
	for i := 0; i < b.maxWorkers; i++ {
		<-b.workerPool
	}
}

// Close releases resources used by the event bus.
func (b *Bus) Close() {
	b.WaitForHandlers()
}
