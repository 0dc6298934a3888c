package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Fulfiller interface {
	Fulfill(ctx context.Context, orderID string) (FulfillmentResult, error)
}

// DispatchError reports a background fulfillment attempt that failed.
type DispatchError struct {
	OrderID string
	Err     error
}

type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// RatePerSecond caps provider calls across all workers; 0 disables pacing.
	RatePerSecond float64
	// AttemptTimeout bounds each Fulfill call; 0 leaves it unbounded.
	AttemptTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// Dispatcher runs fulfillment in the background, detached from the request
// that claimed the order. Failures are logged and published on Errors.
type Dispatcher struct {
	fulfiller Fulfiller
	cfg       DispatcherConfig
	queue     chan string
	errs      chan DispatchError
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewDispatcher(fulfiller Fulfiller, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &Dispatcher{
		fulfiller: fulfiller,
		cfg:       cfg,
		queue:     make(chan string, cfg.QueueSize),
		errs:      make(chan DispatchError, cfg.QueueSize),
		limiter:   limiter,
		logger:    logger,
	}
}

// Enqueue never blocks. It returns false when the queue is full.
func (d *Dispatcher) Enqueue(orderID string) bool {
	select {
	case d.queue <- orderID:
		return true
	default:
		return false
	}
}

// Errors delivers failed attempts. Unread errors are dropped once the buffer is full.
func (d *Dispatcher) Errors() <-chan DispatchError {
	return d.errs
}

// Pending is the number of queued orders not yet picked up.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Run processes the queue until ctx is done, then waits for in-flight attempts.
// Orders still queued at that point stay LOCKED and are recoverable by operator retry.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.work(ctx, worker)
		}(i)
	}
	wg.Wait()

	if n := len(d.queue); n > 0 {
		d.logger.Warn("dispatcher stopped with queued orders", "pending", n)
	}
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case orderID := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				d.logger.Warn("dispatcher stopped before attempt", "order_id", orderID, "err", err)
				return
			}
			d.attempt(ctx, worker, orderID)
		}
	}
}

func (d *Dispatcher) attempt(ctx context.Context, worker int, orderID string) {
	// A started attempt runs to completion even during shutdown.
	attemptCtx := context.WithoutCancel(ctx)
	if d.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, d.cfg.AttemptTimeout)
		defer cancel()
	}

	if _, err := d.fulfiller.Fulfill(attemptCtx, orderID); err != nil {
		d.logger.Error("background fulfillment failed", "worker", worker, "order_id", orderID, "err", err)
		select {
		case d.errs <- DispatchError{OrderID: orderID, Err: err}:
		default:
		}
		return
	}
	d.logger.Debug("background fulfillment done", "worker", worker, "order_id", orderID)
}
