// Package cache is a Redis-backed cache of computed schedules. When Redis is
// unreachable the cache disables itself and every lookup misses, so callers
// never depend on it for correctness.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/okian/walkplan/pkg/logger"
	"github.com/okian/walkplan/pkg/metrics"
)

// DefaultScheduleTTL bounds how stale a cached schedule may get. The urgency
// term of a walk's value drifts with the clock, so keep it short.
const DefaultScheduleTTL = 30 * time.Second

// KeySchedule prefixes schedule entries: + walker id + ":" + fingerprint.
const KeySchedule = "walkplan:cache:schedule:"

// Config contains cache configuration.
type Config struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ScheduleTTL   time.Duration

	// DisableOnError turns caching off after the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns the default cache configuration. Caching is off
// unless enabled explicitly.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ScheduleTTL:    DefaultScheduleTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger logger.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New connects to Redis. A failed ping yields a disabled cache, not an
// error.
func New(ctx context.Context, cfg Config, log logger.Logger) *Cache {
	if cfg.ScheduleTTL <= 0 {
		cfg.ScheduleTTL = DefaultScheduleTTL
	}
	log = log.Named("cache")

	if !cfg.Enabled {
		return &Cache{logger: log, config: cfg, disabled: true}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn(ctx, "redis unavailable, running without schedule cache",
			logger.String("addr", cfg.RedisAddr),
			logger.Error(err),
		)
		_ = client.Close()
		return &Cache{logger: log, config: cfg, disabled: true}
	}

	log.Info(ctx, "redis cache initialized", logger.String("addr", cfg.RedisAddr))
	return &Cache{client: client, logger: log, config: cfg}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.IsAvailable() {
		return ErrUnavailable
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.handleError(ctx, err, "ping")
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (c *Cache) handleError(ctx context.Context, err error, operation string) {
	if err == nil || errors.Is(err, redis.Nil) {
		return
	}
	metrics.RecordErrorByComponent("cache", operation)
	c.logger.Debug(ctx, "cache operation failed", logger.String("operation", operation), logger.Error(err))

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn(ctx, "disabling cache due to redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.handleError(ctx, err, "get")
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug(ctx, "failed to unmarshal cached value", logger.String("key", key), logger.Error(err))
		return false, nil
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(ctx, err, "set")
		return err
	}
	return nil
}

func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(ctx, err, "scan")
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(ctx, err, "delete_batch")
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// ScheduleKey fingerprints everything a schedule depends on: the walker
// profile, the candidate pool and the window.
func ScheduleKey(w walk.Walker, candidates []walk.Walk, from, to time.Time) string { //nolint:gocritic // hugeParam: read-only
	h := xxhash.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(w)
	_ = enc.Encode(candidates)
	_, _ = h.WriteString(from.UTC().Format(time.RFC3339Nano))
	_, _ = h.WriteString(to.UTC().Format(time.RFC3339Nano))

	var sum [8]byte
	return KeySchedule + w.ID + ":" + hex.EncodeToString(h.Sum(sum[:0]))
}

// GetSchedule retrieves a cached schedule.
func (c *Cache) GetSchedule(ctx context.Context, key string) (schedule.Schedule, bool) {
	var s schedule.Schedule
	found, err := c.get(ctx, key, &s)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		return schedule.Schedule{}, false
	case !found:
		metrics.RecordCacheLookup("miss")
		return schedule.Schedule{}, false
	}
	if s.Walks == nil {
		s.Walks = []walk.Walk{}
	}
	metrics.RecordCacheLookup("hit")
	c.logger.Debug(ctx, "schedule cache hit", logger.String("key", key))
	return s, true
}

// SetSchedule caches a schedule.
func (c *Cache) SetSchedule(ctx context.Context, key string, s schedule.Schedule) error { //nolint:gocritic // hugeParam: read-only
	return c.set(ctx, key, s, c.config.ScheduleTTL)
}

// InvalidateWalker removes every cached schedule of a walker.
func (c *Cache) InvalidateWalker(ctx context.Context, walkerID string) error {
	c.logger.Debug(ctx, "invalidating walker schedules", logger.String("walkerID", walkerID))
	return c.deletePattern(ctx, KeySchedule+walkerID+":*")
}
