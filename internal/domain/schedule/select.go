// Package schedule selects the maximum-value subset of non-overlapping
// candidate walks (weighted interval scheduling).
//
// Select runs in O(n log n + m log m) for n candidates and m committed walks:
// predecessors are found by binary search over end times and committed
// overlap is answered from a start-sorted index with running maximum ends.
package schedule

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/walkplan/internal/domain/scoring"
	"github.com/okian/walkplan/internal/domain/walk"
)

// Schedule is the result of Select. Walks are ordered by start and never
// overlap one another.
type Schedule struct {
	Walks      []walk.Walk `json:"walks"`
	TotalValue float64     `json:"total_value"`
	TotalWalks int         `json:"total_walks"`
	Rejected   []Rejection `json:"rejected,omitempty"`
}

// Rejection reports a candidate excluded before optimization.
type Rejection struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func reject(id string, err error) Rejection {
	return Rejection{ID: id, Reason: err.Error(), Err: err}
}

// Select returns the non-overlapping subset of candidates with the highest
// total value. Candidates that fail validation, share an id with another
// candidate, or overlap a committed walk are excluded and listed in
// Schedule.Rejected; the rest are still scheduled.
//
// Totals are compared on value alone and skipping a candidate wins a tie,
// so equal-value subsets resolve towards earlier-ending walks. The one
// exception is an empty prefix, which loses to a non-empty one of equal
// value; a lone zero-value candidate is therefore still scheduled. Inputs
// are not modified and the result does not depend on their order.
func Select(candidates []scoring.Scored, committed []walk.Walk) Schedule {
	out := Schedule{Walks: []walk.Walk{}}

	seen := make(map[string]int, len(candidates))
	for _, c := range candidates {
		seen[c.Walk.ID]++
	}

	blocked := newCommittedIndex(committed)
	items := make([]scoring.Scored, 0, len(candidates))
	for _, c := range candidates {
		if err := check(c, seen); err != nil {
			out.Rejected = append(out.Rejected, reject(c.Walk.ID, err))
			continue
		}
		if blocked.overlaps(c.Walk) {
			out.Rejected = append(out.Rejected, reject(c.Walk.ID, ErrCommittedOverlap))
			continue
		}
		items = append(items, c)
	}
	sort.Slice(out.Rejected, func(i, j int) bool {
		return out.Rejected[i].ID < out.Rejected[j].ID
	})

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].Walk, items[j].Walk
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})

	n := len(items)
	pred := predecessors(items)

	// best[i] is the optimum over the first i sorted candidates:
	// max(best[i-1], value[i]+best[pred[i]]) with skip kept on ties.
	best := make([]total, n+1)
	for i := 1; i <= n; i++ {
		skip := best[i-1]
		take := best[pred[i]].add(items[i-1].Value)
		if take.beats(skip) {
			best[i] = take
		} else {
			best[i] = skip
		}
	}

	for i := n; i > 0; {
		if best[i] == best[i-1] {
			i--
			continue
		}
		out.Walks = append(out.Walks, items[i-1].Walk)
		out.TotalValue += items[i-1].Value
		i = pred[i]
	}
	sort.Slice(out.Walks, func(i, j int) bool { return walk.Less(out.Walks[i], out.Walks[j]) })
	out.TotalWalks = len(out.Walks)
	return out
}

func check(c scoring.Scored, seen map[string]int) error {
	if seen[c.Walk.ID] > 1 {
		return fmt.Errorf("%s: %w", c.Walk.ID, ErrDuplicateID)
	}
	if err := c.Walk.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCandidate, err)
	}
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) || c.Value < 0 {
		return fmt.Errorf("%s value %v: %w", c.Walk.ID, c.Value, ErrInvalidValue)
	}
	return nil
}

// predecessors returns p where p[i] (1-indexed) is the number of candidates
// whose end is at or before the start of candidate i. items must be sorted
// by end.
func predecessors(items []scoring.Scored) []int {
	p := make([]int, len(items)+1)
	for i := 1; i <= len(items); i++ {
		start := items[i-1].Walk.Start
		p[i] = sort.Search(i-1, func(j int) bool {
			return items[j].Walk.End.After(start)
		})
	}
	return p
}

type total struct {
	value float64
	walks int
}

func (t total) add(v float64) total {
	return total{value: t.value + v, walks: t.walks + 1}
}

// beats reports whether t should replace o. Only an empty o gives way on an
// equal value.
func (t total) beats(o total) bool {
	if t.value != o.value {
		return t.value > o.value
	}
	return o.walks == 0 && t.walks > 0
}

// committedIndex answers "does this interval overlap any committed walk".
// Walks are sorted by start; maxEnd[i] is the latest end among the first
// i+1 of them.
type committedIndex struct {
	starts []time.Time
	maxEnd []time.Time
}

func newCommittedIndex(committed []walk.Walk) committedIndex {
	valid := make([]walk.Walk, 0, len(committed))
	for _, c := range committed {
		if c.Validate() == nil {
			valid = append(valid, c)
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].Start.Before(valid[j].Start) })

	idx := committedIndex{
		starts: make([]time.Time, len(valid)),
		maxEnd: make([]time.Time, len(valid)),
	}
	for i, c := range valid {
		idx.starts[i] = c.Start
		idx.maxEnd[i] = c.End
		if i > 0 && idx.maxEnd[i-1].After(c.End) {
			idx.maxEnd[i] = idx.maxEnd[i-1]
		}
	}
	return idx
}

func (x committedIndex) overlaps(w walk.Walk) bool {
	// k committed walks start strictly before w ends.
	k := sort.Search(len(x.starts), func(i int) bool {
		return !x.starts[i].Before(w.End)
	})
	return k > 0 && x.maxEnd[k-1].After(w.Start)
}
