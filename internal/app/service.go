// Package service wires the scheduling engine to the intake queue, the walk
// repository and the schedule cache, and implements the dependencies of the
// HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/walkplan/internal/adapters/cache"
	"github.com/okian/walkplan/internal/adapters/mq/queue"
	"github.com/okian/walkplan/internal/adapters/mq/worker"
	"github.com/okian/walkplan/internal/adapters/repository"
	"github.com/okian/walkplan/internal/domain/alternatives"
	"github.com/okian/walkplan/internal/domain/dedupe"
	"github.com/okian/walkplan/internal/domain/engine"
	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/types"
	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/okian/walkplan/pkg/logger"
	"github.com/okian/walkplan/pkg/metrics"
)

const (
	defaultQueueSize         = 10_000
	defaultDedupeSize        = 50_000
	defaultMaxScheduleWindow = 7 * 24 * time.Hour
	defaultShutdownTimeout   = 15 * time.Second
	cachePingTimeout         = 500 * time.Millisecond
)

// Service implements the API dependencies for the walk planner.
type Service struct {
	mu sync.RWMutex

	engine  *engine.Engine
	store   *repository.TreapStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	cache   *cache.Cache

	workerCount       int
	queueSize         int
	dedupeSize        int
	maxScheduleWindow time.Duration
	shutdownTimeout   time.Duration
	engineConfig      engine.Config
	futureSlotsOnly   bool
	cacheConfig       cache.Config
	now               func() time.Time

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of intake workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the intake queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many posting ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxScheduleWindow caps the span of a schedule request.
func WithMaxScheduleWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.maxScheduleWindow = d
		}
	}
}

// WithShutdownTimeout bounds how long Stop waits for the intake to drain.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithEngineConfig sets scoring parameters and the search policy.
func WithEngineConfig(cfg engine.Config) Option {
	return func(s *Service) {
		s.engineConfig = cfg
	}
}

// WithFutureSlotsOnly controls whether suggested slots may start in the past.
func WithFutureSlotsOnly(on bool) Option {
	return func(s *Service) {
		s.futureSlotsOnly = on
	}
}

// WithCache configures the Redis schedule cache.
func WithCache(cfg cache.Config) Option {
	return func(s *Service) {
		s.cacheConfig = cfg
	}
}

// WithClock sets the source of "now" for the engine.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service. Nothing runs until Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:       runtime.NumCPU() * 2,
		queueSize:         defaultQueueSize,
		dedupeSize:        defaultDedupeSize,
		maxScheduleWindow: defaultMaxScheduleWindow,
		shutdownTimeout:   defaultShutdownTimeout,
		engineConfig:      engine.DefaultConfig(),
		futureSlotsOnly:   true,
		cacheConfig:       cache.DefaultConfig(),
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the engine and starts the intake pipeline. Configuration
// errors are returned here.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	engineOpts := []engine.Option{engine.WithClock(s.now)}
	if s.futureSlotsOnly {
		engineOpts = append(engineOpts, engine.WithFutureSlotsOnly())
	}
	eng, err := engine.New(s.engineConfig, engineOpts...)
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.engine = eng

	s.logger.Info(ctx, "starting walk planner service...")

	s.store = repository.NewTreapStore(ctx)
	s.deduper = dedupe.New(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, s.store,
		worker.WithShutdownTimeout(s.shutdownTimeout),
		worker.WithWorkerOptions(worker.WithForgetter(s.deduper)),
	)
	s.pool.Start(ctx)
	s.cache = cache.New(ctx, s.cacheConfig, s.logger)

	s.started = true
	s.logger.Info(ctx, "walk planner service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("cache", s.cache.IsAvailable()),
	)
	return nil
}

// Stop drains the intake queue and releases resources.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping walk planner service...")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.cache.Close(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "walk planner service stopped")
	return errors.Join(errs...)
}

func (s *Service) running() error {
	if !s.started {
		return types.ErrNotStarted
	}
	return nil
}

// SubmitWalk validates a posting, drops repeats of a recently seen id and
// queues the rest for storage. A posting without id gets a random one.
func (s *Service) SubmitWalk(ctx context.Context, w walk.Walk) (types.Submission, error) { //nolint:gocritic // hugeParam: value semantics
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return types.Submission{}, err
	}

	metrics.RecordWalkReceived()
	if strings.TrimSpace(w.ID) == "" {
		w.ID = uuid.NewString()
	}
	if w.DurationMinutes == 0 {
		w.DurationMinutes = int(w.End.Sub(w.Start) / time.Minute)
	}
	if err := w.Validate(); err != nil {
		metrics.RecordWalkInvalid()
		return types.Submission{}, fmt.Errorf("%w: %w", types.ErrInvalidWalk, err)
	}

	if s.deduper.SeenAndRecord(ctx, w.ID) {
		metrics.RecordWalkDuplicate()
		s.logger.Debug(ctx, "duplicate walk posting", logger.String("walkID", w.ID))
		return types.Submission{ID: w.ID, Duplicate: true}, nil
	}

	err := s.queue.Enqueue(ctx, queue.Posting{Walk: w, ReceivedAt: s.now()})
	if err != nil {
		s.deduper.Unrecord(ctx, w.ID)
		if errors.Is(err, queue.ErrFull) {
			return types.Submission{}, fmt.Errorf("%w: %w", types.ErrBackpressure, err)
		}
		return types.Submission{}, fmt.Errorf("enqueue %s: %w", w.ID, err)
	}
	return types.Submission{ID: w.ID}, nil
}

// OpenWalks returns pooled walks starting in [from, to).
func (s *Service) OpenWalks(ctx context.Context, from, to time.Time) ([]walk.Walk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return nil, err
	}
	if err := s.checkWindow(from, to); err != nil {
		return nil, err
	}
	return s.store.Window(ctx, from, to)
}

func (s *Service) checkWindow(from, to time.Time) error {
	if !to.After(from) {
		return fmt.Errorf("%w: to must be after from", types.ErrInvalidWindow)
	}
	if to.Sub(from) > s.maxScheduleWindow {
		return fmt.Errorf("%w: %s exceeds %s", types.ErrWindowTooLarge, to.Sub(from), s.maxScheduleWindow)
	}
	return nil
}

// PutWalker creates or replaces a walker profile. Committed walks without a
// duration get it derived from their interval.
func (s *Service) PutWalker(ctx context.Context, w walk.Walker) error { //nolint:gocritic // hugeParam: value semantics
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return err
	}

	w.Committed = append([]walk.Walk(nil), w.Committed...)
	for i := range w.Committed {
		if w.Committed[i].DurationMinutes == 0 {
			w.Committed[i].DurationMinutes = int(w.Committed[i].Duration() / time.Minute)
		}
	}
	if err := s.store.PutWalker(ctx, w); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidWalker, err)
	}
	if err := s.cache.InvalidateWalker(ctx, w.ID); err != nil {
		s.logger.Debug(ctx, "cache invalidation failed", logger.String("walkerID", w.ID), logger.Error(err))
	}
	return nil
}

// Walker returns a walker profile.
func (s *Service) Walker(ctx context.Context, id string) (walk.Walker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return walk.Walker{}, err
	}
	return s.store.GetWalker(ctx, id)
}

// Schedule computes the walker's optimal schedule over the open walks
// starting in [from, to). Results are cached by their inputs.
func (s *Service) Schedule(ctx context.Context, walkerID string, from, to time.Time) (schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return schedule.Schedule{}, err
	}
	if err := s.checkWindow(from, to); err != nil {
		return schedule.Schedule{}, err
	}

	walker, err := s.store.GetWalker(ctx, walkerID)
	if err != nil {
		return schedule.Schedule{}, err
	}
	candidates, err := s.store.Window(ctx, from, to)
	if err != nil {
		return schedule.Schedule{}, err
	}

	key := cache.ScheduleKey(walker, candidates, from, to)
	if cached, ok := s.cache.GetSchedule(ctx, key); ok {
		return cached, nil
	}

	start := time.Now()
	result := s.engine.SelectOptimal(walker, candidates)
	metrics.RecordSchedule(float64(time.Since(start).Microseconds())/1000, result.TotalWalks, len(result.Rejected))

	s.logger.Debug(ctx, "schedule computed",
		logger.String("walkerID", walkerID),
		logger.Int("candidates", len(candidates)),
		logger.Int("selected", result.TotalWalks),
		logger.Float64("value", result.TotalValue),
	)

	if err := s.cache.SetSchedule(ctx, key, result); err != nil {
		s.logger.Debug(ctx, "schedule not cached", logger.Error(err))
	}
	return result, nil
}

// CheckConflicts reports how an open walk collides with the walker's
// commitments and, when it does, proposes nearby slots. Nothing is changed.
func (s *Service) CheckConflicts(ctx context.Context, walkerID, walkID string) (types.ConflictCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return types.ConflictCheck{}, err
	}

	walker, err := s.store.GetWalker(ctx, walkerID)
	if err != nil {
		return types.ConflictCheck{}, err
	}
	w, err := s.store.GetWalk(ctx, walkID)
	if err != nil {
		return types.ConflictCheck{}, err
	}
	return s.check(ctx, walker, w)
}

func (s *Service) check(ctx context.Context, walker walk.Walker, w walk.Walk) (types.ConflictCheck, error) { //nolint:gocritic // hugeParam: value semantics
	report, err := s.engine.DetectConflicts(w, walker.Committed)
	if err != nil {
		return types.ConflictCheck{}, err
	}
	for _, c := range report.Conflicts {
		metrics.RecordConflict(c.Level())
	}

	breakdown := s.engine.Breakdown(w, walker)
	out := types.ConflictCheck{
		Walk:         w,
		Value:        breakdown.Value,
		Breakdown:    breakdown,
		Report:       report,
		Alternatives: []alternatives.Slot{},
	}
	if !report.HasConflict {
		return out, nil
	}

	slots, err := s.engine.SuggestAlternatives(w, walker.Committed, s.engine.Config().Search.MaxSuggestions)
	if err != nil {
		return types.ConflictCheck{}, err
	}
	metrics.RecordAlternatives(len(slots))
	out.Alternatives = slots

	s.logger.Debug(ctx, "conflict detected",
		logger.String("walkerID", walker.ID),
		logger.String("walkID", w.ID),
		logger.Int("conflicts", len(report.Conflicts)),
		logger.Int("alternatives", len(slots)),
	)
	return out, nil
}

// Assign commits an open walk to a walker when it does not overlap any of
// the walker's commitments. The check and the commit are atomic with
// respect to other assignments. On overlap the error is types.ErrConflict
// and the returned Assignment carries the report and alternatives.
func (s *Service) Assign(ctx context.Context, walkerID, walkID string) (types.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.running(); err != nil {
		return types.Assignment{}, err
	}

	var (
		blocked   walk.Walker
		candidate walk.Walk
	)
	walker, err := s.store.Commit(ctx, walkerID, walkID, func(wk walk.Walker, w walk.Walk) error { //nolint:gocritic // hugeParam: callback signature
		report, err := s.engine.DetectConflicts(w, wk.Committed)
		if err != nil {
			return err
		}
		if report.HasConflict {
			blocked, candidate = wk, w
			return types.ErrConflict
		}
		candidate = w
		return nil
	})

	switch {
	case errors.Is(err, types.ErrConflict):
		metrics.RecordAssignment("conflict")
		chk, cerr := s.check(ctx, blocked, candidate)
		if cerr != nil {
			return types.Assignment{}, cerr
		}
		return types.Assignment{Walker: blocked, Walk: candidate, Check: &chk}, fmt.Errorf("assign %s to %s: %w", walkID, walkerID, types.ErrConflict)
	case errors.Is(err, repository.ErrWalkNotFound), errors.Is(err, repository.ErrWalkerNotFound):
		metrics.RecordAssignment("not_found")
		return types.Assignment{}, err
	case err != nil:
		metrics.RecordAssignment("error")
		return types.Assignment{}, fmt.Errorf("assign %s to %s: %w", walkID, walkerID, err)
	}

	metrics.RecordAssignment("committed")
	if err := s.cache.InvalidateWalker(ctx, walkerID); err != nil {
		s.logger.Debug(ctx, "cache invalidation failed", logger.String("walkerID", walkerID), logger.Error(err))
	}
	s.logger.Info(ctx, "walk assigned", logger.String("walkerID", walkerID), logger.String("walkID", walkID))
	return types.Assignment{Walker: walker, Walk: candidate}, nil
}

// cachePing checks Redis liveness with a short deadline so stats never
// stall on a slow cache.
func (s *Service) cachePing(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
	defer cancel()
	return s.cache.Ping(pingCtx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Stats{
		Started:    s.started,
		DedupeSize: s.dedupeSize,
	}
	if !s.started {
		return st
	}

	st.WorkerCount = s.pool.Size()
	st.QueueCapacity = s.queue.Capacity()
	st.QueueLength = s.queue.Len(ctx)
	st.DedupeEntries = s.deduper.Size()
	st.OpenWalks = s.store.CountWalks(ctx)
	st.Walkers = s.store.CountWalkers(ctx)
	st.WalksStored = s.pool.Stored()
	st.WalksFailed = s.pool.Failed()
	st.CacheAvailable = s.cachePing(ctx) == nil

	metrics.UpdateRepositoryWalks(st.OpenWalks)
	metrics.UpdateRepositoryWalkers(st.Walkers)
	return st
}
