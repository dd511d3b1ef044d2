// internal/notify/dispatcher.go
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const sendTimeout = 30 * time.Second

type message struct {
	ctx  context.Context
	text string
}

// Dispatcher queues messages and hands them to a Sink from a fixed set of
// workers. Notify never blocks; when the queue is full the message is
// dropped and logged.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger
	queue  chan message
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(sink Sink, logger *slog.Logger, queueSize, workers int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}

	d := &Dispatcher{
		sink:   sink,
		logger: logger,
		queue:  make(chan message, queueSize),
	}
	for range workers {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

func (d *Dispatcher) Notify(ctx context.Context, text string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.WarnContext(ctx, "notification dropped, dispatcher closed")
		return
	}

	select {
	case d.queue <- message{ctx: context.WithoutCancel(ctx), text: text}:
	default:
		d.logger.WarnContext(ctx, "notification dropped, queue full", "queue_size", cap(d.queue))
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for msg := range d.queue {
		ctx, cancel := context.WithTimeout(msg.ctx, sendTimeout)
		if err := d.sink.Send(ctx, msg.text); err != nil {
			d.logger.ErrorContext(ctx, "notification failed", "error", err)
		}
		cancel()
	}
}

// Close stops accepting messages and waits until the queue is drained or
// ctx is done.
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
