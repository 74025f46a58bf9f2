package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/platformhub/platformhub/internal/safego"
	"github.com/platformhub/platformhub/internal/telemetry"
)

const (
	defaultQueueSize   = 1000
	defaultShipTimeout = 15 * time.Second
)

// AsyncShipper queues events and ships them from a single background worker.
// Events arriving while the queue is full are dropped and counted.
type AsyncShipper struct {
	next      Shipper
	queue     chan *Event
	done      chan struct{}
	closeOnce sync.Once
	timeout   time.Duration
}

// NewAsyncShipper starts the worker. queueSize <= 0 uses the default.
func NewAsyncShipper(next Shipper, queueSize int) *AsyncShipper {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	as := &AsyncShipper{
		next:    next,
		queue:   make(chan *Event, queueSize),
		done:    make(chan struct{}),
		timeout: defaultShipTimeout,
	}
	safego.Go("audit-shipper", as.run)
	return as
}

func (as *AsyncShipper) run() {
	defer close(as.done)
	for event := range as.queue {
		ctx, cancel := context.WithTimeout(context.Background(), as.timeout)
		_ = as.next.Ship(ctx, event) // failures are logged and counted downstream
		cancel()
	}
}

// Ship enqueues event without blocking. The caller's context is not carried
// into the worker, which outlives the request.
func (as *AsyncShipper) Ship(_ context.Context, event *Event) error {
	select {
	case as.queue <- event:
	default:
		telemetry.AuditShipFailuresTotal.WithLabelValues("queue").Inc()
		slog.Warn("audit queue full, dropping event", "request_id", event.RequestID, "action", event.Action)
	}
	return nil
}

// Close drains the queue, then closes the wrapped shipper. Ship must not be
// called after Close.
func (as *AsyncShipper) Close() error {
	as.closeOnce.Do(func() { close(as.queue) })
	<-as.done
	return as.next.Close()
}
