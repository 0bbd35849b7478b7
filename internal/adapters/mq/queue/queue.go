// Package queue is the bounded intake buffer between the HTTP layer and the
// worker pool. Enqueue never blocks: a full queue is reported to the caller,
// which turns it into backpressure.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/okian/walkplan/pkg/metrics"
)

const (
	defaultQueueCapacity = 10000
	defaultBufferSize    = 10000
)

// Posting is a walk submitted for the open pool, stamped with its arrival.
type Posting struct {
	Walk       walk.Walk
	ReceivedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a posting. It returns ErrFull or ErrClosed instead of
	// blocking.
	Enqueue(ctx context.Context, p Posting) error

	// Dequeue returns a channel that receives postings until the queue is
	// closed and drained or ctx is done.
	Dequeue(ctx context.Context) <-chan Posting

	// Len returns the number of queued postings.
	Len(ctx context.Context) int

	// Close stops intake. Queued postings stay readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	postings   chan Posting
	capacity   int
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.bufferSize < q.capacity {
		q.bufferSize = q.capacity
	}
	q.postings = make(chan Posting, q.bufferSize)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Enqueue adds a posting to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, p Posting) error {
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return fmt.Errorf("enqueue %s: %w", p.Walk.ID, err)
	}
	if len(q.postings) >= q.capacity {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return ErrFull
	}

	select {
	case q.postings <- p:
		metrics.RecordQueueEnqueue()
		q.observeSize()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives postings as they become available.
// Each call starts its own forwarding goroutine; several workers may share
// one queue by calling Dequeue independently.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Posting {
	out := make(chan Posting)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-q.postings:
				if !ok {
					return
				}
				select {
				case out <- p:
					metrics.RecordQueueDequeue()
					q.observeSize()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued postings.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.observeSize()
	return len(q.postings)
}

func (q *InMemoryQueue) observeSize() {
	size := len(q.postings)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Close stops intake and closes the channel so consumers drain and exit.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.postings)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
