// Package engine exposes the four scheduling operations behind one value:
// scoring, optimal selection, conflict detection and alternative search.
//
// An Engine holds only validated configuration. Every method is a pure
// function of its arguments and may be called from many goroutines.
package engine

import (
	"fmt"
	"time"

	"github.com/okian/walkplan/internal/domain/alternatives"
	"github.com/okian/walkplan/internal/domain/conflict"
	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/scoring"
	"github.com/okian/walkplan/internal/domain/walk"
)

// Config is passed explicitly; there is no implicit default.
type Config struct {
	Scoring scoring.Params
	Search  alternatives.Policy
}

// DefaultConfig bundles scoring.DefaultParams and alternatives.DefaultPolicy.
func DefaultConfig() Config {
	return Config{
		Scoring: scoring.DefaultParams(),
		Search:  alternatives.DefaultPolicy(),
	}
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock sets the source of "now" for urgency and past-slot filtering.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithFutureSlotsOnly drops suggested slots that would start before now.
func WithFutureSlotsOnly() Option {
	return func(e *Engine) {
		e.futureOnly = true
	}
}

// Engine is the scheduling facade.
type Engine struct {
	scorer     *scoring.Scorer
	search     alternatives.Policy
	now        func() time.Time
	futureOnly bool
}

// New validates cfg and builds an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		search: cfg.Search,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := cfg.Search.Validate(); err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrInvalidConfig, err)
	}
	scorer, err := scoring.New(cfg.Scoring, scoring.WithClock(e.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e.scorer = scorer
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return Config{Scoring: e.scorer.Params(), Search: e.search}
}

// Score returns the value of c for w.
func (e *Engine) Score(c walk.Walk, w walk.Walker) float64 {
	return e.scorer.Score(c, w)
}

// Breakdown returns the terms behind Score.
func (e *Engine) Breakdown(c walk.Walk, w walk.Walker) scoring.Breakdown {
	return e.scorer.Breakdown(c, w)
}

// SelectOptimal scores candidates for w and selects the best schedule around
// w's committed walks.
func (e *Engine) SelectOptimal(w walk.Walker, candidates []walk.Walk) schedule.Schedule {
	return schedule.Select(e.scorer.ScoreAll(candidates, w), w.Committed)
}

// DetectConflicts reports committed walks overlapping c.
func (e *Engine) DetectConflicts(c walk.Walk, committed []walk.Walk) (conflict.Report, error) {
	return conflict.Detect(c, committed)
}

// SuggestAlternatives searches with the configured step and window for up
// to maxSuggestions conflict-free slots.
func (e *Engine) SuggestAlternatives(c walk.Walk, committed []walk.Walk, maxSuggestions int) ([]alternatives.Slot, error) {
	p := e.search
	p.MaxSuggestions = maxSuggestions
	if e.futureOnly {
		if now := e.now(); now.After(p.NotBefore) {
			p.NotBefore = now
		}
	}
	return alternatives.Suggest(c, committed, p)
}
