package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DispatcherConfig tunes queueing and retries.
type DispatcherConfig struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	SendTimeout  time.Duration
}

func (c *DispatcherConfig) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
}

// Dispatcher fans events out to sinks on background workers.
type Dispatcher struct {
	sinks  []Sink
	cfg    DispatcherConfig
	logger *slog.Logger
	queue  chan Event
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDispatcher starts cfg.Workers workers delivering to sinks.
func NewDispatcher(sinks []Sink, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sinks:  sinks,
		cfg:    cfg,
		logger: logger.With("service", "notify"),
		queue:  make(chan Event, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Publish enqueues ev. When the queue is full or the dispatcher is closed
// the event is dropped with a warning.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("event dropped, dispatcher closed", "kind", ev.Kind, "item_id", ev.ItemID)
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("event dropped, queue full", "kind", ev.Kind, "item_id", ev.ItemID)
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for ev := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, ev)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, ev Event) {
	logger := d.logger.With("sink", s.Name(), "kind", ev.Kind, "item_id", ev.ItemID)

	var err error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(d.cfg.RetryBackoff * time.Duration(attempt)):
			case <-d.ctx.Done():
				logger.Warn("delivery abandoned", "error", err)
				return
			}
		}
		ctx, cancel := context.WithTimeout(d.ctx, d.cfg.SendTimeout)
		err = s.Send(ctx, ev)
		cancel()
		if err == nil {
			logger.Debug("event delivered", "attempt", attempt+1)
			return
		}
		logger.Warn("delivery failed", "attempt", attempt+1, "error", err)
	}
	logger.Error("delivery gave up", "attempts", d.cfg.MaxRetries+1, "error", err)
}

// Close stops accepting events and waits for queued ones to be delivered.
// If ctx ends first, pending retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
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
