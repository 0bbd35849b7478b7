package worker_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/walkplan/internal/adapters/mq/queue"
	worker "github.com/okian/walkplan/internal/adapters/mq/worker"
	"github.com/okian/walkplan/internal/domain/walk"
	logging "github.com/okian/walkplan/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type mockQueue struct {
	postings chan queue.Posting
	once     sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{postings: make(chan queue.Posting, 128)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Posting {
	return mq.postings
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.postings) })
	return nil
}

func (mq *mockQueue) add(w walk.Walk) { //nolint:gocritic // hugeParam: test helper
	mq.postings <- queue.Posting{Walk: w, ReceivedAt: time.Now()}
}

type mockStore struct {
	mu     sync.RWMutex
	walks  map[string]walk.Walk
	errors map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{walks: map[string]walk.Walk{}, errors: map[string]error{}}
}

func (ms *mockStore) PutWalk(_ context.Context, w walk.Walk) (bool, error) { //nolint:gocritic // hugeParam: matches Store
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if err, ok := ms.errors[w.ID]; ok {
		return false, err
	}
	_, exists := ms.walks[w.ID]
	ms.walks[w.ID] = w
	return !exists, nil
}

func (ms *mockStore) setError(id string, err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.errors[id] = err
}

func (ms *mockStore) has(id string) bool {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	_, ok := ms.walks[id]
	return ok
}

func (ms *mockStore) count() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.walks)
}

type mockForgetter struct {
	mu  sync.Mutex
	ids []string
}

func (mf *mockForgetter) Unrecord(_ context.Context, id string) {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	mf.ids = append(mf.ids, id)
}

func (mf *mockForgetter) forgotten() []string {
	mf.mu.Lock()
	defer mf.mu.Unlock()
	return append([]string(nil), mf.ids...)
}

func mkWalk(id string, startMin int) walk.Walk {
	start := base.Add(time.Duration(startMin) * time.Minute)
	w, err := walk.New(id, start, start.Add(30*time.Minute))
	if err != nil {
		panic(err)
	}
	return w
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := newMockQueue()
		store := newMockStore()
		forgetter := &mockForgetter{}

		convey.Convey("When creating a worker with options", func() {
			w := worker.NewInMemoryWorker(q, store,
				worker.WithName("test-worker"),
				worker.WithLogger(logging.Named("custom")),
				worker.WithForgetter(forgetter),
			)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running a worker", func() {
			w := worker.NewInMemoryWorker(q, store, worker.WithForgetter(forgetter))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			convey.Convey("And a valid posting arrives", func() {
				q.add(mkWalk("walk-1", 0))

				convey.Convey("Then it is stored", func() {
					convey.So(eventually(func() bool { return store.has("walk-1") }), convey.ShouldBeTrue)
					convey.So(forgetter.forgotten(), convey.ShouldBeEmpty)
				})
			})

			convey.Convey("And an invalid posting arrives", func() {
				bad := mkWalk("walk-bad", 0)
				bad.End = bad.Start
				q.add(bad)
				q.add(mkWalk("walk-after", 60))

				convey.Convey("Then it is dropped, forgotten, and the worker carries on", func() {
					convey.So(eventually(func() bool { return store.has("walk-after") }), convey.ShouldBeTrue)
					convey.So(store.has("walk-bad"), convey.ShouldBeFalse)
					convey.So(forgetter.forgotten(), convey.ShouldResemble, []string{"walk-bad"})
				})
			})

			convey.Convey("And the store fails", func() {
				store.setError("walk-2", errors.New("disk full"))
				q.add(mkWalk("walk-2", 0))

				convey.Convey("Then the id is forgotten", func() {
					convey.So(eventually(func() bool { return len(forgetter.forgotten()) == 1 }), convey.ShouldBeTrue)
					convey.So(store.has("walk-2"), convey.ShouldBeFalse)
				})
			})

			convey.Convey("And when shutting down", func() {
				sctx, scancel := context.WithTimeout(context.Background(), time.Second)
				defer scancel()

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
					convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewInMemoryWorker(q, store)
			done := make(chan struct{})
			go func() {
				w.Run(context.Background())
				close(done)
			}()
			_ = q.Close()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})

		convey.Convey("When the context is cancelled", func() {
			w := worker.NewInMemoryWorker(q, store)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then the worker stops", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Fatal("worker did not stop")
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a new worker pool", t, func() {
		_ = logging.Init(logging.WithWriter(io.Discard))

		q := newMockQueue()
		store := newMockStore()

		convey.Convey("When creating a pool with default count", func() {
			pool := worker.NewPool(0, q, store)

			convey.Convey("Then it sizes itself from the CPU count", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When a started pool receives postings concurrently", func() {
			pool := worker.NewPool(4, q, store, worker.WithShutdownTimeout(time.Second))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			const total = 100
			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func(producer int) {
					defer wg.Done()
					for j := 0; j < total/5; j++ {
						q.add(mkWalk(fmt.Sprintf("walk-%d-%d", producer, j), j*30))
					}
				}(i)
			}
			wg.Wait()

			convey.Convey("Then every posting is stored", func() {
				convey.So(eventually(func() bool { return store.count() == total }), convey.ShouldBeTrue)
				convey.So(pool.Stored(), convey.ShouldEqual, total)
				convey.So(pool.Failed(), convey.ShouldEqual, 0)
			})

			convey.Convey("Then shutdown closes the queue and drains", func() {
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(store.count(), convey.ShouldEqual, total)
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When postings fail in a pool", func() {
			forgetter := &mockForgetter{}
			pool := worker.NewPool(2, q, store, worker.WithWorkerOptions(worker.WithForgetter(forgetter)))
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			bad := mkWalk("bad", 0)
			bad.DurationMinutes = 5
			q.add(bad)

			convey.Convey("Then the failure is counted and the id released", func() {
				convey.So(eventually(func() bool { return pool.Failed() == 1 }), convey.ShouldBeTrue)
				convey.So(forgetter.forgotten(), convey.ShouldResemble, []string{"bad"})
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}
