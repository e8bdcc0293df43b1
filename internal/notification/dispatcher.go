package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher decouples event delivery from the request that produced it.
// Emit never blocks: a full queue drops the event with a warning.
type Dispatcher struct {
	sender  Sender
	queue   chan Event
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		sender:  sender,
		queue:   make(chan Event, cfg.QueueSize),
		timeout: cfg.SendTimeout,
		log:     log,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("notification dropped after shutdown", eventFields(e)...)
		return
	}

	select {
	case d.queue <- e:
	default:
		d.log.Warn("notification queue full, event dropped", eventFields(e)...)
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notification sender panicked", append(eventFields(e), zap.Any("panic", r))...)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, e); err != nil {
		d.log.Warn("notification delivery failed", append(eventFields(e), zap.Error(err))...)
	}
}

func eventFields(e Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", e.ID.String()),
		zap.String("event_type", string(e.Type)),
		zap.Int64("user_id", e.UserID),
		zap.Int64("booking_id", e.BookingID),
	}
}
