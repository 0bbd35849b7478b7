// Package dedupe tracks walk posting ids so that a resubmitted posting is
// accepted at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records posting ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded and records it
	// if not. The check and the write are a single atomic step.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so that a posting rejected downstream (queue
	// full, failed validation) can be submitted again.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of recorded ids.
	Size() int
}

// window is a bounded set that evicts the oldest id first.
type window struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	seen    map[string]*list.Element
}

// New creates an in-memory deduper. With a max size of zero or less the set
// is unbounded.
func New(opts ...Option) Deduper {
	d := &window{
		maxSize: defaultMaxSize,
		order:   list.New(),
		seen:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *window) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[id] = d.order.PushBack(id)
	return false
}

func (d *window) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
	}
}

func (d *window) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
