// Package conflict detects time overlaps between a candidate walk and a
// walker's committed walks.
//
// Intervals are half-open: [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1,
// so back-to-back walks never conflict.
package conflict

import (
	"fmt"
	"sort"

	"github.com/okian/walkplan/internal/domain/walk"
)

// SevereThreshold separates minor from severe conflicts. A severity strictly
// above it is severe.
const SevereThreshold = 0.7

// Level labels.
const (
	LevelSevere = "severe"
	LevelMinor  = "minor"
)

// Conflict is one committed walk overlapping the candidate.
type Conflict struct {
	Walk           walk.Walk `json:"walk"`
	OverlapMinutes float64   `json:"overlap_minutes"`
	Severity       float64   `json:"severity"`
}

// Level returns LevelSevere or LevelMinor.
func (c Conflict) Level() string {
	if IsSevere(c.Severity) {
		return LevelSevere
	}
	return LevelMinor
}

// Report is the outcome of Detect. An empty report is a successful result.
type Report struct {
	Conflicts   []Conflict `json:"conflicts"`
	HasConflict bool       `json:"has_conflict"`

	// Skipped counts committed entries ignored because they failed
	// validation.
	Skipped int `json:"skipped,omitempty"`
}

// Severe returns the number of severe conflicts.
func (r Report) Severe() int {
	n := 0
	for _, c := range r.Conflicts {
		if IsSevere(c.Severity) {
			n++
		}
	}
	return n
}

// IsSevere reports whether severity exceeds SevereThreshold.
func IsSevere(severity float64) bool {
	return severity > SevereThreshold
}

// Overlaps reports whether the half-open intervals of a and b intersect.
func Overlaps(a, b walk.Walk) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// OverlapMinutes returns the length of the intersection of a and b in
// minutes, or 0 when they do not overlap.
func OverlapMinutes(a, b walk.Walk) float64 {
	if !Overlaps(a, b) {
		return 0
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	return end.Sub(start).Minutes()
}

// Severity is the overlap divided by the shorter of the two durations,
// clamped to [0,1].
func Severity(a, b walk.Walk) float64 {
	shorter := a.Duration()
	if d := b.Duration(); d < shorter {
		shorter = d
	}
	if shorter <= 0 {
		return 0
	}
	s := OverlapMinutes(a, b) / shorter.Minutes()
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Detect compares candidate against every committed walk. The candidate must
// be valid. A committed entry carrying the candidate's own id is ignored, as
// are invalid committed entries (counted in Report.Skipped).
//
// Conflicts are ordered by severity descending, then by the committed walk's
// start and id ascending.
func Detect(candidate walk.Walk, committed []walk.Walk) (Report, error) {
	if err := candidate.Validate(); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}

	r := Report{Conflicts: []Conflict{}}
	for _, c := range committed {
		if c.ID == candidate.ID {
			continue
		}
		if err := c.Validate(); err != nil {
			r.Skipped++
			continue
		}
		if !Overlaps(candidate, c) {
			continue
		}
		r.Conflicts = append(r.Conflicts, Conflict{
			Walk:           c,
			OverlapMinutes: OverlapMinutes(candidate, c),
			Severity:       Severity(candidate, c),
		})
	}

	sort.Slice(r.Conflicts, func(i, j int) bool {
		a, b := r.Conflicts[i], r.Conflicts[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if !a.Walk.Start.Equal(b.Walk.Start) {
			return a.Walk.Start.Before(b.Walk.Start)
		}
		return a.Walk.ID < b.Walk.ID
	})
	r.HasConflict = len(r.Conflicts) > 0
	return r, nil
}
