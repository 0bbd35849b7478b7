package walk

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Experience is the walker's experience level. Levels are ordered:
// beginner < intermediate < expert.
type Experience string

// Experience levels.
const (
	Beginner     Experience = "beginner"
	Intermediate Experience = "intermediate"
	Expert       Experience = "expert"
)

// Rank returns the position of e in the experience ordering. An empty level
// ranks as beginner; unknown levels rank below it.
func (e Experience) Rank() int {
	switch e {
	case Beginner, "":
		return 0
	case Intermediate:
		return 1
	case Expert:
		return 2
	}
	return -1
}

// Walker is the scoring subject: a service provider and the walks already
// committed to them.
type Walker struct {
	ID                    string        `json:"id" yaml:"id"`
	Rating                float64       `json:"rating" yaml:"rating"`
	Experience            Experience    `json:"experience" yaml:"experience"`
	MaxTravelDistanceKm   float64       `json:"max_travel_distance_km" yaml:"max_travel_distance_km"`
	PreferredSizes        []Size        `json:"preferred_sizes,omitempty" yaml:"preferred_sizes,omitempty"`
	PreferredTemperaments []Temperament `json:"preferred_temperaments,omitempty" yaml:"preferred_temperaments,omitempty"`
	AcceptedEnergyLevels  []Energy      `json:"accepted_energy_levels,omitempty" yaml:"accepted_energy_levels,omitempty"`
	Committed             []Walk        `json:"committed,omitempty" yaml:"committed,omitempty"`
}

// Validate checks the walker id, experience level, numeric fields and every
// committed walk.
func (w Walker) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return ErrEmptyID
	}
	if w.Experience.Rank() < 0 {
		return fmt.Errorf("walker %s: experience %q: %w", w.ID, w.Experience, ErrUnknownKind)
	}
	if math.IsNaN(w.Rating) || math.IsNaN(w.MaxTravelDistanceKm) || w.MaxTravelDistanceKm < 0 {
		return fmt.Errorf("walker %s: %w", w.ID, ErrInvalidWalker)
	}
	for _, c := range w.Committed {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("walker %s committed: %w", w.ID, err)
		}
	}
	return nil
}

// SortedCommitted returns a copy of the committed walks ordered by start.
func (w Walker) SortedCommitted() []Walk {
	out := make([]Walk, len(w.Committed))
	copy(out, w.Committed)
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return out
}
