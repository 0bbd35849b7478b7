package worker

import (
	"time"

	"github.com/okian/walkplan/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithForgetter makes the worker release the id of a posting it could not
// store, so that the client may resubmit it.
func WithForgetter(f Forgetter) Option {
	return func(w *InMemoryWorker) {
		w.forgetter = f
	}
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithWorkerOptions passes options to every worker of the pool.
func WithWorkerOptions(opts ...Option) PoolOption {
	return func(p *Pool) {
		p.workerOpts = append(p.workerOpts, opts...)
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for workers to drain.
func WithShutdownTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.shutdownTimeout = d
		}
	}
}
