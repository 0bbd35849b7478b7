package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/okian/walkplan/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: start ASC, then walk id ASC. In-order traversal yields the pool
// in time order, so a window query visits only the nodes it returns plus
// O(log n) boundary nodes. Priorities are a hash of the id, which keeps the
// tree shape independent of insertion order.

const defaultMetricsUpdateInterval = 5 * time.Second

type node struct {
	start time.Time
	id    string
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aStart, aID) sorts before (bStart, bID).
func less(aStart time.Time, aID string, bStart time.Time, bID string) bool {
	if !aStart.Equal(bStart) {
		return aStart.Before(bStart)
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func priority(id string) uint64 {
	return xxhash.Sum64String(id)
}

func insert(n *node, start time.Time, id string) *node {
	if n == nil {
		return &node{start: start, id: id, prio: priority(id), size: 1}
	}
	if less(start, id, n.start, n.id) {
		n.left = insert(n.left, start, id)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, start, id)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, start time.Time, id string) *node {
	if n == nil {
		return nil
	}
	switch {
	case id == n.id && start.Equal(n.start):
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, start, id)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, start, id)
		}
	case less(start, id, n.start, n.id):
		n.left = deleteNode(n.left, start, id)
	default:
		n.right = deleteNode(n.right, start, id)
	}
	fix(n)
	return n
}

// collectWindow appends ids of nodes with from <= start < to in order.
func collectWindow(n *node, from, to time.Time, out *[]string) {
	if n == nil {
		return
	}
	if !n.start.Before(from) {
		collectWindow(n.left, from, to, out)
	}
	if !n.start.Before(from) && n.start.Before(to) {
		*out = append(*out, n.id)
	}
	if n.start.Before(to) {
		collectWindow(n.right, from, to, out)
	}
}

// TreapStore is the in-memory Store.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	walks   map[string]walk.Walk
	walkers map[string]walk.Walker

	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewTreapStore constructs a treap store and starts its gauge updater, which
// runs until ctx is done or Close is called.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		walks:                 make(map[string]walk.Walk),
		walkers:               make(map[string]walk.Walker),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutine.
func (s *TreapStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

// PutWalk implements Store.PutWalk in O(log n) expected time.
func (s *TreapStore) PutWalk(_ context.Context, w walk.Walk) (bool, error) {
	defer observeUpdate(time.Now())

	if err := w.Validate(); err != nil {
		return false, err
	}
	w = cloneWalk(w)

	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.walks[w.ID]
	if exists {
		s.root = deleteNode(s.root, old.Start, old.ID)
	}
	s.walks[w.ID] = w
	s.root = insert(s.root, w.Start, w.ID)
	return !exists, nil
}

// GetWalk implements Store.GetWalk.
func (s *TreapStore) GetWalk(_ context.Context, id string) (walk.Walk, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.walks[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "walk_not_found")
		return walk.Walk{}, fmt.Errorf("%s: %w", id, ErrWalkNotFound)
	}
	return cloneWalk(w), nil
}

// Window implements Store.Window in O(log n + k) expected time.
func (s *TreapStore) Window(_ context.Context, from, to time.Time) ([]walk.Walk, error) {
	defer observeQuery(time.Now())

	if !to.After(from) {
		metrics.RecordErrorByComponent("repository", "invalid_window")
		return nil, fmt.Errorf("[%s, %s): %w", from.Format(time.RFC3339), to.Format(time.RFC3339), ErrInvalidWindow)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, 16)
	collectWindow(s.root, from, to, &ids)
	out := make([]walk.Walk, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneWalk(s.walks[id]))
	}
	return out, nil
}

// CountWalks implements Store.CountWalks.
func (s *TreapStore) CountWalks(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.walks)
}

// PutWalker implements Store.PutWalker. Committed walks are stored sorted by
// start.
func (s *TreapStore) PutWalker(_ context.Context, w walk.Walker) error {
	defer observeUpdate(time.Now())

	if err := w.Validate(); err != nil {
		return err
	}
	w = cloneWalker(w)
	w.Committed = w.SortedCommitted()

	s.mu.Lock()
	s.walkers[w.ID] = w
	s.mu.Unlock()
	return nil
}

// GetWalker implements Store.GetWalker.
func (s *TreapStore) GetWalker(_ context.Context, id string) (walk.Walker, error) {
	defer observeQuery(time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.walkers[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "walker_not_found")
		return walk.Walker{}, fmt.Errorf("%s: %w", id, ErrWalkerNotFound)
	}
	return cloneWalker(w), nil
}

// CountWalkers implements Store.CountWalkers.
func (s *TreapStore) CountWalkers(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.walkers)
}

// Commit implements Store.Commit.
func (s *TreapStore) Commit(_ context.Context, walkerID, walkID string, check CommitCheck) (walk.Walker, error) {
	defer observeUpdate(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	walker, ok := s.walkers[walkerID]
	if !ok {
		return walk.Walker{}, fmt.Errorf("%s: %w", walkerID, ErrWalkerNotFound)
	}
	w, ok := s.walks[walkID]
	if !ok {
		return walk.Walker{}, fmt.Errorf("%s: %w", walkID, ErrWalkNotFound)
	}
	if check != nil {
		if err := check(cloneWalker(walker), cloneWalk(w)); err != nil {
			return walk.Walker{}, err
		}
	}

	committed := make([]walk.Walk, 0, len(walker.Committed)+1)
	committed = append(committed, walker.Committed...)
	committed = append(committed, w)
	sort.Slice(committed, func(i, j int) bool { return walk.Less(committed[i], committed[j]) })
	walker.Committed = committed

	s.walkers[walkerID] = walker
	delete(s.walks, walkID)
	s.root = deleteNode(s.root, w.Start, w.ID)
	return cloneWalker(walker), nil
}

func (s *TreapStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *TreapStore) updateMetrics() {
	s.mu.RLock()
	walks, walkers := len(s.walks), len(s.walkers)
	s.mu.RUnlock()

	metrics.UpdateRepositoryWalks(walks)
	metrics.UpdateRepositoryWalkers(walkers)
}

func cloneWalk(w walk.Walk) walk.Walk {
	if w.DistanceKm != nil {
		d := *w.DistanceKm
		w.DistanceKm = &d
	}
	if w.Dog.SpecialNeeds != nil {
		w.Dog.SpecialNeeds = append([]walk.SpecialNeed(nil), w.Dog.SpecialNeeds...)
	}
	return w
}

func cloneWalker(w walk.Walker) walk.Walker {
	w.PreferredSizes = append([]walk.Size(nil), w.PreferredSizes...)
	w.PreferredTemperaments = append([]walk.Temperament(nil), w.PreferredTemperaments...)
	w.AcceptedEnergyLevels = append([]walk.Energy(nil), w.AcceptedEnergyLevels...)
	committed := make([]walk.Walk, len(w.Committed))
	for i, c := range w.Committed {
		committed[i] = cloneWalk(c)
	}
	w.Committed = committed
	return w
}
