package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	appctx "stockledger/internal/core/context"
	"stockledger/pkg/logger"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("notification queue is full")

	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("notification dispatcher is stopped")
)

// DispatcherConfig bounds the queue and the retry policy.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	MaxAttempts int

	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// DefaultDispatcherConfig returns a small queue with two workers.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:   256,
		Workers:     2,
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

// Stats is a snapshot of the dispatcher counters.
type Stats struct {
	QueueDepth int    `json:"queueDepth"`
	Capacity   int    `json:"capacity"`
	Delivered  uint64 `json:"delivered"`
	Failed     uint64 `json:"failed"`
	Dropped    uint64 `json:"dropped"`
	Retries    uint64 `json:"retries"`
}

type job struct {
	ctx     context.Context
	payload Payload
}

// Dispatcher is a bounded in-process queue drained by a worker pool.
// Enqueue never blocks; delivery failures are retried, then logged and dropped.
type Dispatcher struct {
	gateway Gateway
	cfg     DispatcherConfig
	log     *logger.Logger

	queue chan job

	mu      sync.RWMutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	retries   atomic.Uint64
}

// NewDispatcher creates a dispatcher. Zero config values take the defaults.
func NewDispatcher(gateway Gateway, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if log == nil {
		log = logger.Default()
	}

	return &Dispatcher{
		gateway: gateway,
		cfg:     cfg,
		log:     log.WithComponent("notify"),
		queue:   make(chan job, cfg.QueueSize),
	}
}

// Enqueue schedules p for delivery. The request context is detached so the
// job survives the caller, keeping trace and user for the logs.
func (d *Dispatcher) Enqueue(ctx context.Context, p Payload) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.dropped.Add(1)
		return ErrStopped
	}

	select {
	case d.queue <- job{ctx: appctx.Detach(ctx), payload: p}:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Start launches the workers. Cancelling ctx aborts pending retries.
func (d *Dispatcher) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run(runCtx, i)
	}
	d.log.Infow("notification dispatcher started", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)
}

// Stop closes the queue and waits for the workers to drain it.
// If ctx expires first, pending retries are cancelled and ctx.Err is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		d.log.Infow("notification dispatcher stopped", "delivered", d.delivered.Load(), "failed", d.failed.Load())
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		<-done
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth: len(d.queue),
		Capacity:   cap(d.queue),
		Delivered:  d.delivered.Load(),
		Failed:     d.failed.Load(),
		Dropped:    d.dropped.Load(),
		Retries:    d.retries.Load(),
	}
}

func (d *Dispatcher) run(ctx context.Context, worker int) {
	defer d.wg.Done()
	for j := range d.queue {
		d.deliver(ctx, j)
	}
	d.log.Debugw("notification worker exiting", "worker", worker)
}

func (d *Dispatcher) deliver(runCtx context.Context, j job) {
	log := d.log.WithContext(j.ctx)

	ctx, cancel := context.WithCancel(j.ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	for attempt := 1; ; attempt++ {
		err := d.gateway.Notify(ctx, j.payload)
		if err == nil {
			d.delivered.Add(1)
			return
		}

		if attempt >= d.cfg.MaxAttempts {
			d.failed.Add(1)
			log.Errorw("alert notification failed",
				"alert_id", j.payload.AlertID,
				"attempts", attempt,
				"error", err,
			)
			return
		}

		// Retry only what failed so delivered channels are not sent twice.
		var de *DeliveryError
		if errors.As(err, &de) && len(de.Failed) > 0 {
			j.payload.Channels = de.Failed
		}

		log.Warnw("alert notification attempt failed, retrying",
			"alert_id", j.payload.AlertID,
			"attempt", attempt,
			"error", err,
		)
		d.retries.Add(1)

		select {
		case <-runCtx.Done():
			d.failed.Add(1)
			return
		case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
		}
	}
}
