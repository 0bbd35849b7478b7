// Package worker drains the intake queue into the walk repository.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/walkplan/internal/adapters/mq/queue"
	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/okian/walkplan/pkg/logger"
	"github.com/okian/walkplan/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 4 // multiplier for runtime.NumCPU()
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Store receives validated walks.
type Store interface {
	PutWalk(ctx context.Context, w walk.Walk) (bool, error)
}

// Forgetter releases an id recorded by the deduper.
type Forgetter interface {
	Unrecord(ctx context.Context, id string)
}

// Queue defines how workers receive postings.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Posting
}

// Worker processes postings until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue is closed and drained.
	Run(ctx context.Context)

	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	store     Store
	forgetter Forgetter
	name      string

	// pool counters, nil for a standalone worker
	active    *atomic.Int64
	stored    *atomic.Int64
	failed    *atomic.Int64
	shutdown  chan struct{}
	done      chan struct{}
	closeOnce atomic.Bool

	logger logger.Logger
}

// NewInMemoryWorker creates a worker reading from q and writing to store.
func NewInMemoryWorker(q Queue, store Store, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		store:    store,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	postings := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case p, ok := <-postings:
			if !ok {
				return
			}
			if err := w.process(ctx, p); err != nil {
				w.logger.Warn(ctx, "posting dropped",
					logger.String("walkID", p.Walk.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker without draining the queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	if w.closeOnce.CompareAndSwap(false, true) {
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, p queue.Posting) error { //nolint:gocritic // hugeParam: Posting passed by value over the channel
	start := time.Now()
	if w.active != nil {
		w.active.Add(1)
		defer w.active.Add(-1)
	}
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := p.Walk.Validate(); err != nil {
		metrics.RecordWalkInvalid()
		metrics.RecordErrorByComponent("worker", "invalid_walk")
		w.fail(ctx, p.Walk.ID)
		return fmt.Errorf("invalid posting: %w", err)
	}

	created, err := w.store.PutWalk(ctx, p.Walk)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		w.fail(ctx, p.Walk.ID)
		return fmt.Errorf("store posting: %w", err)
	}

	metrics.RecordWalkStored()
	if w.stored != nil {
		w.stored.Add(1)
	}
	w.logger.Debug(ctx, "walk stored",
		logger.String("walkID", p.Walk.ID),
		logger.Bool("created", created),
		logger.Duration("queued", start.Sub(p.ReceivedAt)),
	)
	return nil
}

func (w *InMemoryWorker) fail(ctx context.Context, id string) {
	if w.failed != nil {
		w.failed.Add(1)
	}
	if w.forgetter != nil {
		w.forgetter.Unrecord(ctx, id)
	}
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers         []*InMemoryWorker
	queue           Queue
	workerOpts      []Option
	shutdownTimeout time.Duration

	active atomic.Int64
	stored atomic.Int64
	failed atomic.Int64

	shutdown  chan struct{}
	closeOnce atomic.Bool

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A count below one selects
// a multiple of the CPU count.
func NewPool(workerCount int, q Queue, store Store, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:         make([]*InMemoryWorker, workerCount),
		queue:           q,
		shutdownTimeout: poolShutdownTimeout,
		shutdown:        make(chan struct{}),
		logger:          logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, p.workerOpts...)
		w := NewInMemoryWorker(q, store, wopts...)
		w.active, w.stored, w.failed = &p.active, &p.stored, &p.failed
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	metrics.UpdateWorkerIdleCount(workerCount)

	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Stored returns how many postings the pool has written to the store.
func (p *Pool) Stored() int64 {
	return p.stored.Load()
}

// Failed returns how many postings the pool has dropped.
func (p *Pool) Failed() int64 {
	return p.failed.Load()
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			p.updateMetrics()
		}
	}
}

func (p *Pool) updateMetrics() {
	active := int(p.active.Load())
	metrics.UpdateWorkerActiveCount(active)
	metrics.UpdateWorkerIdleCount(len(p.workers) - active)
}

// Shutdown closes the queue, when it can be closed, and waits for the
// workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.closeOnce.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, p.shutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			for _, rest := range p.workers[i:] {
				if rest.closeOnce.CompareAndSwap(false, true) {
					close(rest.shutdown)
				}
			}
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	p.updateMetrics()
	return nil
}
