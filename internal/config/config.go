// Package config defines service configuration and its conversion into the
// engine's typed parameters.
//
// Keys are flat so that every field maps one-to-one onto a WALKPLAN_ env var.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/okian/walkplan/internal/adapters/cache"
	"github.com/okian/walkplan/internal/domain/alternatives"
	"github.com/okian/walkplan/internal/domain/engine"
	"github.com/okian/walkplan/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory intake queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of intake workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the set of recently seen posting ids.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxScheduleWindow caps the from/to span of a schedule request.
	MaxScheduleWindow time.Duration `koanf:"max_schedule_window"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Scoring weights and shape.
	WeightDuration         float64       `koanf:"weight_duration"`
	WeightAffinity         float64       `koanf:"weight_affinity"`
	WeightUrgency          float64       `koanf:"weight_urgency"`
	WeightDistance         float64       `koanf:"weight_distance"`
	WeightRating           float64       `koanf:"weight_rating"`
	WeightExperience       float64       `koanf:"weight_experience"`
	ReferenceDuration      time.Duration `koanf:"reference_duration"`
	UrgencyHorizon         time.Duration `koanf:"urgency_horizon"`
	UnknownDistancePenalty float64       `koanf:"unknown_distance_penalty"`

	// Alternative slot search.
	SearchStep      time.Duration `koanf:"search_step"`
	SearchWindow    time.Duration `koanf:"search_window"`
	MaxSuggestions  int           `koanf:"max_suggestions"`
	FutureSlotsOnly bool          `koanf:"future_slots_only"`

	// Schedule cache.
	CacheEnabled  bool          `koanf:"cache_enabled"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	CacheTTL      time.Duration `koanf:"cache_ttl"`
}

// New returns a Config holding the defaults.
func New() *Config {
	sp := scoring.DefaultParams()
	ap := alternatives.DefaultPolicy()
	cc := cache.DefaultConfig()

	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         10_000,
		WorkerCount:       runtime.NumCPU() * 4,
		DedupeSize:        50_000,
		MaxScheduleWindow: 7 * 24 * time.Hour,
		ShutdownTimeout:   15 * time.Second,

		WeightDuration:         sp.Weights.Duration,
		WeightAffinity:         sp.Weights.Affinity,
		WeightUrgency:          sp.Weights.Urgency,
		WeightDistance:         sp.Weights.Distance,
		WeightRating:           sp.Weights.Rating,
		WeightExperience:       sp.Weights.Experience,
		ReferenceDuration:      sp.ReferenceDuration,
		UrgencyHorizon:         sp.UrgencyHorizon,
		UnknownDistancePenalty: sp.UnknownDistancePenalty,

		SearchStep:      ap.Step,
		SearchWindow:    ap.Window,
		MaxSuggestions:  ap.MaxSuggestions,
		FutureSlotsOnly: true,

		CacheEnabled: cc.Enabled,
		RedisAddr:    cc.RedisAddr,
		CacheTTL:     cc.ScheduleTTL,
	}
}

// ScoringParams converts the scoring keys.
func (c *Config) ScoringParams() scoring.Params {
	return scoring.Params{
		Weights: scoring.Weights{
			Duration:   c.WeightDuration,
			Affinity:   c.WeightAffinity,
			Urgency:    c.WeightUrgency,
			Distance:   c.WeightDistance,
			Rating:     c.WeightRating,
			Experience: c.WeightExperience,
		},
		ReferenceDuration:      c.ReferenceDuration,
		UrgencyHorizon:         c.UrgencyHorizon,
		UnknownDistancePenalty: c.UnknownDistancePenalty,
	}
}

// SearchPolicy converts the alternative search keys.
func (c *Config) SearchPolicy() alternatives.Policy {
	return alternatives.Policy{
		Step:           c.SearchStep,
		Window:         c.SearchWindow,
		MaxSuggestions: c.MaxSuggestions,
	}
}

// EngineConfig bundles ScoringParams and SearchPolicy.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{Scoring: c.ScoringParams(), Search: c.SearchPolicy()}
}

// CacheConfig converts the cache keys.
func (c *Config) CacheConfig() cache.Config {
	cc := cache.DefaultConfig()
	cc.Enabled = c.CacheEnabled
	cc.RedisAddr = c.RedisAddr
	cc.RedisPassword = c.RedisPassword
	cc.RedisDB = c.RedisDB
	cc.ScheduleTTL = c.CacheTTL
	return cc
}

// Validate checks service keys and the engine parameters.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount < 0:
		return fmt.Errorf("%w: worker_count %d", ErrInvalidConfig, c.WorkerCount)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size %d", ErrInvalidConfig, c.DedupeSize)
	case c.MaxScheduleWindow <= 0:
		return fmt.Errorf("%w: max_schedule_window %s", ErrInvalidConfig, c.MaxScheduleWindow)
	case c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.CacheEnabled && strings.TrimSpace(c.RedisAddr) == "":
		return fmt.Errorf("%w: redis_addr must be set when the cache is enabled", ErrInvalidConfig)
	}
	if err := c.ScoringParams().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.SearchPolicy().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
