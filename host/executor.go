// Package host serializes mutating ledger operations.
//
// A stokvel.Ledger does not serialize mutations. An Executor owns one worker goroutine
// that applies submitted operations one at a time, in submission order, so
// any number of goroutines may call Submit concurrently.
package host

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/stokvel"
)

// DefaultQueueSize is the number of operations that may wait for the worker.
const DefaultQueueSize = 1024

type request struct {
	ctx  context.Context
	op   Op
	done chan result
}

type result struct {
	receipt *stokvel.Receipt
	err     error
}

// Executor applies operations against a Ledger from a single goroutine.
type Executor struct {
	ledger  *stokvel.Ledger
	logger  *slog.Logger
	limiter *callerLimiter
	now     func() time.Time

	queueSize int
	queue     chan *request
	stopChan  chan struct{}
	wg        sync.WaitGroup

	// mu guards the running flag against concurrent enqueue and Stop.
	mu      sync.RWMutex
	running bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithQueueSize sets how many operations may wait for the worker.
func WithQueueSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithRateLimit throttles each caller to rps operations per second with the
// given burst. Non-positive values disable throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Executor) {
		e.limiter = newCallerLimiter(rps, burst, 0)
	}
}

// WithClock overrides the time source used by the rate limiter.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates an executor for l. Call Start before Submit.
func NewExecutor(l *stokvel.Ledger, opts ...Option) *Executor {
	e := &Executor{
		ledger:    l,
		logger:    slog.Default(),
		now:       time.Now,
		queueSize: DefaultQueueSize,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Ledger returns the ledger the executor applies operations to. Its read
// methods may be called directly.
func (e *Executor) Ledger() *stokvel.Ledger {
	return e.ledger
}

// Start launches the worker goroutine.
func (e *Executor) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}
	e.queue = make(chan *request, e.queueSize)
	e.stopChan = make(chan struct{})
	e.running = true

	e.wg.Add(1)
	go e.worker()

	e.logger.Info("stokvel executor started",
		"queue_size", e.queueSize,
		"rate_limited", e.limiter != nil,
	)

	return nil
}

// Stop stops accepting operations, fails the ones still queued with
// ErrExecutorStopped and waits for the in-flight operation to finish.
func (e *Executor) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	close(e.stopChan)
	e.mu.Unlock()

	e.wg.Wait()

	e.logger.Info("stokvel executor stopped")
	return nil
}

// Submit queues op and blocks until it has been applied. If ctx is cancelled
// before the worker reaches op, op has no effect and ctx's error is returned.
func (e *Executor) Submit(ctx context.Context, op Op) (*stokvel.Receipt, error) {
	if !e.limiter.Allow(op.Caller, e.now()) {
		e.logger.Info("operation throttled",
			"operation", op.Name,
			"caller", op.Caller.Hex(),
		)
		return nil, stokvel.ErrRateLimited
	}

	req := &request{ctx: ctx, op: op, done: make(chan result, 1)}
	if err := e.enqueue(ctx, req); err != nil {
		return nil, err
	}

	res := <-req.done
	return res.receipt, res.err
}

func (e *Executor) enqueue(ctx context.Context, req *request) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.running {
		return stokvel.ErrExecutorStopped
	}

	select {
	case e.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) worker() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			e.drain()
			return
		case req := <-e.queue:
			e.run(req)
		}
	}
}

func (e *Executor) run(req *request) {
	if err := req.ctx.Err(); err != nil {
		req.done <- result{err: err}
		return
	}
	rcpt, err := req.op.apply(req.ctx, e.ledger)
	req.done <- result{receipt: rcpt, err: err}
}

// drain fails everything still queued. Stop holds mu while closing stopChan,
// so no request can be enqueued after this runs.
func (e *Executor) drain() {
	for {
		select {
		case req := <-e.queue:
			req.done <- result{err: stokvel.ErrExecutorStopped}
		default:
			return
		}
	}
}
