// Package walk contains the domain records passed between the engine and the
// service layer: bookable walks, dog profiles and walker profiles.
package walk

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Walk is one bookable, time-boxed walk. Values are treated as immutable:
// engine code never modifies a Walk it receives.
//
// Fields are exported so that records can be decoded from JSON or YAML;
// such values must pass Validate before the engine trusts them.
type Walk struct {
	ID              string     `json:"id" yaml:"id"`
	Start           time.Time  `json:"start" yaml:"start"`
	End             time.Time  `json:"end" yaml:"end"`
	DurationMinutes int        `json:"duration_minutes" yaml:"duration_minutes"`
	Dog             DogProfile `json:"dog" yaml:"dog"`
	DistanceKm      *float64   `json:"distance_km,omitempty" yaml:"distance_km,omitempty"`
}

// Option applies an optional attribute to a Walk under construction.
type Option func(*Walk)

// WithDog sets the dog profile.
func WithDog(d DogProfile) Option {
	return func(w *Walk) {
		w.Dog = d
	}
}

// WithDistance sets the distance from the walker's reference location.
func WithDistance(km float64) Option {
	return func(w *Walk) {
		w.DistanceKm = &km
	}
}

// New builds a Walk, deriving DurationMinutes from the interval, and
// validates it.
func New(id string, start, end time.Time, opts ...Option) (Walk, error) {
	w := Walk{
		ID:    id,
		Start: start,
		End:   end,
	}
	for _, opt := range opts {
		opt(&w)
	}
	w.DurationMinutes = int(end.Sub(start) / time.Minute)

	if err := w.Validate(); err != nil {
		return Walk{}, err
	}
	return w, nil
}

// Validate checks the record invariants: a non-empty id, End after Start,
// DurationMinutes equal to End-Start, a non-negative distance and known dog
// traits.
func (w Walk) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return ErrEmptyID
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("walk %s: %w", w.ID, ErrInvalidInterval)
	}
	if time.Duration(w.DurationMinutes)*time.Minute != w.End.Sub(w.Start) {
		return fmt.Errorf("walk %s: %d minutes vs interval %s: %w",
			w.ID, w.DurationMinutes, w.End.Sub(w.Start), ErrDurationMismatch)
	}
	if w.DistanceKm != nil {
		d := *w.DistanceKm
		if math.IsNaN(d) || d < 0 {
			return fmt.Errorf("walk %s: %w", w.ID, ErrNegativeDistance)
		}
	}
	if err := w.Dog.Validate(); err != nil {
		return fmt.Errorf("walk %s: %w", w.ID, err)
	}
	return nil
}

// Duration returns End-Start.
func (w Walk) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Shift returns a copy of w moved by offset. The id and duration are kept.
func (w Walk) Shift(offset time.Duration) Walk {
	shifted := w
	shifted.Start = w.Start.Add(offset)
	shifted.End = w.End.Add(offset)
	return shifted
}

// Less reports whether a sorts before b by start, then end, then id.
func Less(a, b Walk) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if !a.End.Equal(b.End) {
		return a.End.Before(b.End)
	}
	return a.ID < b.ID
}
