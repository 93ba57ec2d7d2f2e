package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher fans ticket events out to subscribers.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// syncDispatcher calls subscribers on the publishing goroutine, in subscription order.
type syncDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	logger   *zap.Logger
}

// NewInMemoryDispatcher creates a synchronous dispatcher. Slow sinks belong behind the
// notification worker, not directly on this dispatcher.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &syncDispatcher{
		handlers: make(map[EventType][]EventHandler),
		logger:   logger,
	}
}

// Publish delivers event to every subscriber of its type. A failing or panicking
// subscriber is logged and does not stop the others; Publish itself never fails.
func (d *syncDispatcher) Publish(ctx context.Context, event Event) error {
	d.mu.RLock()
	handlers := d.handlers[event.Type]
	d.mu.RUnlock()

	for i, handler := range handlers {
		if err := d.deliver(ctx, handler, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Int("handler", i),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (d *syncDispatcher) deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe registers handler for eventType. The handler slice is copied on write so
// Publish can iterate a snapshot without holding the lock.
func (d *syncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	current := d.handlers[eventType]
	next := make([]EventHandler, len(current), len(current)+1)
	copy(next, current)
	d.handlers[eventType] = append(next, handler)
}
