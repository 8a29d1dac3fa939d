package triggers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"message-functions/internal/repositories"
)

// ErrDispatcherClosed is returned when an event arrives after Shutdown
var ErrDispatcherClosed = errors.New("trigger dispatcher is shut down")

// DispatcherStats counts trigger outcomes since start
type DispatcherStats struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	InFlight  int64 `json:"in_flight"`
}

// Dispatcher runs a Handler for every created document, asynchronously and with
// at-least-once delivery. At most maxInstances invocations run at the same time.
type Dispatcher struct {
	handler Handler
	sem     *semaphore.Weighted
	retry   *RetryConfig
	logger  *logrus.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	delivered atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
}

// NewDispatcher creates a dispatcher bounded by maxInstances concurrent invocations
func NewDispatcher(handler Handler, maxInstances int, retry *RetryConfig, logger *logrus.Logger) *Dispatcher {
	if maxInstances < 1 {
		maxInstances = 1
	}
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler: handler,
		sem:     semaphore.NewWeighted(int64(maxInstances)),
		retry:   retry,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Hook returns a CreatedHook that feeds store notifications into the dispatcher
func (d *Dispatcher) Hook() repositories.CreatedHook {
	return func(_ context.Context, event repositories.CreatedEvent) {
		if err := d.Dispatch(FromCreatedEvent(event)); err != nil {
			d.logger.WithFields(logrus.Fields{
				"collection":  event.Collection,
				"document_id": event.DocumentID,
				"error":       err.Error(),
			}).Warn("Dropped document-created event")
		}
	}
}

// Dispatch schedules the handler for the event and returns immediately.
// The invocation is detached from the caller's context.
func (d *Dispatcher) Dispatch(event DocumentCreated) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	d.wg.Add(1)
	go d.run(event)
	return nil
}

func (d *Dispatcher) run(event DocumentCreated) {
	defer d.wg.Done()

	entry := d.logger.WithFields(logrus.Fields{
		"collection":  event.Collection,
		"document_id": event.DocumentID,
	})

	if err := d.sem.Acquire(d.ctx, 1); err != nil {
		d.failed.Add(1)
		entry.WithError(err).Error("Trigger abandoned before start")
		return
	}
	defer d.sem.Release(1)

	d.inFlight.Add(1)
	defer d.inFlight.Add(-1)

	attempts, err := WithRetry(d.ctx, d.retry, func(ctx context.Context) error {
		return d.handler(ctx, event)
	})
	if err != nil {
		d.failed.Add(1)
		entry.WithFields(logrus.Fields{
			"attempts": attempts,
			"error":    err.Error(),
		}).Error("Trigger invocation failed")
		return
	}

	d.delivered.Add(1)
	entry.WithField("attempts", attempts).Debug("Trigger invocation completed")
}

// Stats returns a snapshot of the dispatcher counters
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		InFlight:  d.inFlight.Load(),
	}
}

// Shutdown stops accepting events and waits for pending invocations.
// When ctx ends first, pending invocations are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
