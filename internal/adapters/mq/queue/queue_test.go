package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/walkplan/internal/domain/walk"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func posting(t *testing.T, id string) Posting {
	t.Helper()
	w, err := walk.New(id, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("walk.New: %v", err)
	}
	return Posting{Walk: w, ReceivedAt: base}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if err := q.Enqueue(ctx, posting(t, "walk1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	p := <-q.Dequeue(ctx)
	if p.Walk.ID != "walk1" {
		t.Errorf("expected walk1, got %v", p.Walk.ID)
	}
	if !p.ReceivedAt.Equal(base) {
		t.Errorf("received-at not carried: %v", p.ReceivedAt)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2), WithBufferSize(1))
	ctx := context.Background()

	if q.Capacity() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Capacity())
	}
	for _, id := range []string{"walk1", "walk2"} {
		if err := q.Enqueue(ctx, posting(t, id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if err := q.Enqueue(ctx, posting(t, "walk3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := q.Enqueue(ctx, posting(t, "walk1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(100))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers, perProducer = 10, 100
	w, err := walk.New("template", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("walk.New: %v", err)
	}

	var consumed sync.Map
	var consumers sync.WaitGroup
	for i := 0; i < 4; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for p := range q.Dequeue(ctx) {
				consumed.Store(p.Walk.ID, true)
			}
		}()
	}

	var producersWG sync.WaitGroup
	for i := 0; i < producers; i++ {
		producersWG.Add(1)
		go func(id int) {
			defer producersWG.Done()
			for j := 0; j < perProducer; j++ {
				p := Posting{Walk: w, ReceivedAt: base}
				p.Walk.ID = fmt.Sprintf("walk%d_%d", id, j)
				for errors.Is(q.Enqueue(ctx, p), ErrFull) {
					time.Sleep(time.Millisecond)
				}
			}
		}(i)
	}
	producersWG.Wait()
	_ = q.Close()
	consumers.Wait()

	n := 0
	consumed.Range(func(_, _ any) bool { n++; return true })
	if n != producers*perProducer {
		t.Errorf("expected %d consumed postings, got %d", producers*perProducer, n)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected final length 0, got %d", l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	for _, id := range []string{"walk1", "walk2"} {
		if err := q.Enqueue(ctx, posting(t, id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if err := q.Enqueue(ctx, posting(t, "walk3")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Postings queued before Close are still delivered, then the channel closes.
	var drained []string
	timeout := time.After(time.Second)
	ch := q.Dequeue(ctx)
	for done := false; !done; {
		select {
		case p, ok := <-ch:
			if !ok {
				done = true
				break
			}
			drained = append(drained, p.Walk.ID)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
	if fmt.Sprint(drained) != "[walk1 walk2]" {
		t.Errorf("drained = %v", drained)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected second close to succeed, got error: %v", err)
	}
}
