// Package scoring maps a (walk, walker) pair to a non-negative value used by
// the schedule selector.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/walkplan/internal/domain/walk"
)

// Default scoring configuration constants.
const (
	defaultDurationWeight   = 3.0
	defaultAffinityWeight   = 2.0
	defaultUrgencyWeight    = 1.5
	defaultDistanceWeight   = 2.0
	defaultRatingWeight     = 0.5
	defaultExperienceWeight = 0.5

	defaultReferenceDuration      = 60 * time.Minute
	defaultUrgencyHorizon         = 72 * time.Hour
	defaultUnknownDistancePenalty = 0.5

	maxRating = 5.0
)

// Weights scales each normalized sub-score. All weights must be finite and
// non-negative; a zero weight removes its term.
type Weights struct {
	Duration   float64 `json:"duration"`
	Affinity   float64 `json:"affinity"`
	Urgency    float64 `json:"urgency"`
	Distance   float64 `json:"distance"`
	Rating     float64 `json:"rating"`
	Experience float64 `json:"experience"`
}

// Params is the full scorer configuration.
type Params struct {
	Weights Weights

	// ReferenceDuration is the walk length at which the duration term
	// saturates at 1.
	ReferenceDuration time.Duration

	// UrgencyHorizon is the lead time beyond which the urgency term is 0.
	UrgencyHorizon time.Duration

	// UnknownDistancePenalty is the penalty ratio used when a walk has no
	// distance, in [0,1].
	UnknownDistancePenalty float64
}

// DefaultParams returns the stock configuration. Callers pass it explicitly.
func DefaultParams() Params {
	return Params{
		Weights: Weights{
			Duration:   defaultDurationWeight,
			Affinity:   defaultAffinityWeight,
			Urgency:    defaultUrgencyWeight,
			Distance:   defaultDistanceWeight,
			Rating:     defaultRatingWeight,
			Experience: defaultExperienceWeight,
		},
		ReferenceDuration:      defaultReferenceDuration,
		UrgencyHorizon:         defaultUrgencyHorizon,
		UnknownDistancePenalty: defaultUnknownDistancePenalty,
	}
}

// Validate rejects negative or non-finite weights and non-positive durations.
func (p Params) Validate() error {
	ws := []struct {
		name string
		v    float64
	}{
		{"duration", p.Weights.Duration},
		{"affinity", p.Weights.Affinity},
		{"urgency", p.Weights.Urgency},
		{"distance", p.Weights.Distance},
		{"rating", p.Weights.Rating},
		{"experience", p.Weights.Experience},
	}
	for _, w := range ws {
		if math.IsNaN(w.v) || math.IsInf(w.v, 0) || w.v < 0 {
			return fmt.Errorf("%s weight %v: %w", w.name, w.v, ErrInvalidParams)
		}
	}
	if p.ReferenceDuration <= 0 {
		return fmt.Errorf("reference duration %s: %w", p.ReferenceDuration, ErrInvalidParams)
	}
	if p.UrgencyHorizon <= 0 {
		return fmt.Errorf("urgency horizon %s: %w", p.UrgencyHorizon, ErrInvalidParams)
	}
	if math.IsNaN(p.UnknownDistancePenalty) || p.UnknownDistancePenalty < 0 || p.UnknownDistancePenalty > 1 {
		return fmt.Errorf("unknown distance penalty %v: %w", p.UnknownDistancePenalty, ErrInvalidParams)
	}
	return nil
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithClock sets the source of "now" used by the urgency term.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

// Scored pairs a walk with its value.
type Scored struct {
	Walk  walk.Walk `json:"walk"`
	Value float64   `json:"value"`
}

// Breakdown holds the normalized sub-scores behind a value.
type Breakdown struct {
	Duration   float64 `json:"duration"`
	Affinity   float64 `json:"affinity"`
	Urgency    float64 `json:"urgency"`
	Distance   float64 `json:"distance_penalty"`
	Rating     float64 `json:"rating"`
	Experience float64 `json:"experience"`
	Value      float64 `json:"value"`
}

// Scorer computes walk values. It holds only configuration and is safe for
// concurrent use.
type Scorer struct {
	params Params
	now    func() time.Time
}

// New creates a scorer from validated params.
func New(params Params, opts ...Option) (*Scorer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Scorer{
		params: params,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the scorer configuration.
func (s *Scorer) Params() Params {
	return s.params
}

// Score returns the value of c for w. It never fails: out-of-range inputs
// are clamped.
func (s *Scorer) Score(c walk.Walk, w walk.Walker) float64 {
	return s.Breakdown(c, w).Value
}

// ScoreAll scores every candidate in order. The clock is read once so every
// urgency term in the batch is measured against the same instant.
func (s *Scorer) ScoreAll(candidates []walk.Walk, w walk.Walker) []Scored {
	now := s.now()
	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		out[i] = Scored{Walk: c, Value: s.breakdown(c, w, now).Value}
	}
	return out
}

// Breakdown returns the sub-scores and the resulting value.
func (s *Scorer) Breakdown(c walk.Walk, w walk.Walker) Breakdown {
	return s.breakdown(c, w, s.now())
}

func (s *Scorer) breakdown(c walk.Walk, w walk.Walker, now time.Time) Breakdown {
	b := Breakdown{
		Duration:   s.duration(c),
		Affinity:   affinity(c.Dog, w),
		Urgency:    s.urgency(c, now),
		Distance:   s.distancePenalty(c, w),
		Rating:     clamp01(w.Rating / maxRating),
		Experience: experienceFit(c.Dog, w.Experience),
	}

	wt := s.params.Weights
	v := wt.Duration*b.Duration +
		wt.Affinity*b.Affinity +
		wt.Urgency*b.Urgency +
		wt.Rating*b.Rating +
		wt.Experience*b.Experience -
		wt.Distance*b.Distance

	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	b.Value = v
	return b
}

func (s *Scorer) duration(c walk.Walk) float64 {
	return clamp01(float64(c.End.Sub(c.Start)) / float64(s.params.ReferenceDuration))
}

// urgency decays linearly from 1 at "now" to 0 at the horizon.
func (s *Scorer) urgency(c walk.Walk, now time.Time) float64 {
	lead := c.Start.Sub(now)
	if lead <= 0 {
		return 1
	}
	return clamp01(1 - float64(lead)/float64(s.params.UrgencyHorizon))
}

func (s *Scorer) distancePenalty(c walk.Walk, w walk.Walker) float64 {
	if c.DistanceKm == nil || math.IsNaN(*c.DistanceKm) {
		return s.params.UnknownDistancePenalty
	}
	d := math.Max(0, *c.DistanceKm)
	limit := w.MaxTravelDistanceKm
	if math.IsNaN(limit) || limit <= 0 {
		if d == 0 {
			return 0
		}
		return 1
	}
	return clamp01(d / limit)
}

// affinity is the fraction of matched traits among size, temperament and
// energy. An empty preference set accepts every value.
func affinity(d walk.DogProfile, w walk.Walker) float64 {
	matched := 0
	if matches(w.PreferredSizes, d.Size) {
		matched++
	}
	if matches(w.PreferredTemperaments, d.Temperament) {
		matched++
	}
	if matches(w.AcceptedEnergyLevels, d.Energy) {
		matched++
	}
	return float64(matched) / 3
}

func matches[T comparable](prefs []T, v T) bool {
	if len(prefs) == 0 {
		return true
	}
	for _, p := range prefs {
		if p == v {
			return true
		}
	}
	return false
}

// experienceFit is 1 for dogs without special needs, otherwise it grows with
// the walker's experience level.
func experienceFit(d walk.DogProfile, e walk.Experience) float64 {
	if !d.HasSpecialNeeds() {
		return 1
	}
	switch e.Rank() {
	case 2:
		return 1
	case 1:
		return 0.5
	}
	return 0
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}
