// Package alternatives searches for conflict-free time slots near a
// requested walk.
package alternatives

import (
	"fmt"
	"time"

	"github.com/okian/walkplan/internal/domain/conflict"
	"github.com/okian/walkplan/internal/domain/walk"
)

const (
	defaultStep           = 30 * time.Minute
	defaultWindow         = 24 * time.Hour
	defaultMaxSuggestions = 3
)

// Policy bounds the search.
type Policy struct {
	// Step is the distance between consecutive trial starts.
	Step time.Duration `json:"step"`

	// Window is how far before and after the requested start to look.
	Window time.Duration `json:"window"`

	// MaxSuggestions caps the number of slots returned.
	MaxSuggestions int `json:"max_suggestions"`

	// NotBefore, when set, drops slots starting before it.
	NotBefore time.Time `json:"not_before,omitempty"`
}

// DefaultPolicy returns a 30 minute step over a one day window with three
// suggestions.
func DefaultPolicy() Policy {
	return Policy{
		Step:           defaultStep,
		Window:         defaultWindow,
		MaxSuggestions: defaultMaxSuggestions,
	}
}

// Validate checks the input contract.
func (p Policy) Validate() error {
	if p.MaxSuggestions <= 0 {
		return fmt.Errorf("%d: %w", p.MaxSuggestions, ErrInvalidMaxSuggestions)
	}
	if p.Step <= 0 {
		return fmt.Errorf("%s: %w", p.Step, ErrInvalidStep)
	}
	if p.Window < 0 {
		return fmt.Errorf("%s: %w", p.Window, ErrInvalidWindow)
	}
	return nil
}

// Slot is a conflict-free interval with the same duration as the request.
// Offset is Start minus the requested start.
type Slot struct {
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`
	Offset time.Duration `json:"offset"`
}

// Suggest steps outward from candidate.Start in multiples of p.Step, trying
// the later offset before the earlier one at each distance, and returns the
// first p.MaxSuggestions slots the conflict detector clears. The result is
// ordered by distance from the requested start, later first on ties. A
// search that runs out of window returns fewer slots, possibly none.
func Suggest(candidate walk.Walk, committed []walk.Walk, p Policy) ([]Slot, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := candidate.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", conflict.ErrInvalidCandidate, err)
	}

	out := make([]Slot, 0, p.MaxSuggestions)
	for off := p.Step; off <= p.Window && len(out) < p.MaxSuggestions; off += p.Step {
		for _, o := range [2]time.Duration{off, -off} {
			if len(out) == p.MaxSuggestions {
				break
			}
			trial := candidate.Shift(o)
			if !p.NotBefore.IsZero() && trial.Start.Before(p.NotBefore) {
				continue
			}
			r, err := conflict.Detect(trial, committed)
			if err != nil {
				return nil, err
			}
			if r.HasConflict {
				continue
			}
			out = append(out, Slot{Start: trial.Start, End: trial.End, Offset: o})
		}
	}
	return out, nil
}
