package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/campus-desk/internal/events"
	"github.com/spec-kit/campus-desk/internal/service"
)

// DefaultQueueSize bounds events waiting for external delivery.
const DefaultQueueSize = 256

// NotificationWorker relays events from the request path to slow sinks (webhook, mail,
// Kafka) on its own goroutine. A full queue drops events rather than stall publishers.
type NotificationWorker struct {
	sinks  events.Dispatcher
	queue  chan events.Event
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewNotificationWorker creates an idle worker.
func NewNotificationWorker(logger *zap.Logger, queueSize int) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &NotificationWorker{
		sinks:  events.NewInMemoryDispatcher(logger),
		queue:  make(chan events.Event, queueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Sinks is the dispatcher external handlers subscribe to.
func (w *NotificationWorker) Sinks() events.Dispatcher {
	return w.sinks
}

// Start subscribes to every event type on source and begins delivering.
func (w *NotificationWorker) Start(source events.Dispatcher) {
	for _, t := range events.AllTypes {
		source.Subscribe(t, w.enqueue)
	}
	go w.run()
}

// Stop stops accepting events and waits for the queue to drain or ctx to end.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
	}
	return nil
}

func (w *NotificationWorker) run() {
	defer close(w.done)
	for event := range w.queue {
		// sinks carry their own timeouts
		_ = w.sinks.Publish(context.Background(), event)
	}
}

// StartNotificationWorker wires notification handlers and, when configured, the Kafka
// forwarder behind a worker fed by dispatcher.
func StartNotificationWorker(dispatcher events.Dispatcher, notificationService *service.NotificationService, publisher *events.KafkaPublisher, logger *zap.Logger) *NotificationWorker {
	w := NewNotificationWorker(logger, DefaultQueueSize)
	if notificationService != nil {
		notificationService.RegisterHandlers(w.Sinks())
	}
	if publisher != nil {
		publisher.Attach(w.Sinks())
	}
	w.Start(dispatcher)
	return w
}
