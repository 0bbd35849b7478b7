package loadgen

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/walkplan/internal/domain/schedule"
)

// Verification failures.
var (
	ErrScheduleOverlap   = errors.New("scheduled walks overlap")
	ErrScheduleUnordered = errors.New("scheduled walks out of order")
	ErrScheduleCount     = errors.New("total_walks does not match walks")
	ErrScheduleValue     = errors.New("total_value is not a finite non-negative number")
)

// verifySchedule checks the invariants a client can observe: walks ordered by
// start, no two overlapping under half-open intervals, consistent totals.
func verifySchedule(s schedule.Schedule) error { //nolint:gocritic // hugeParam: value semantics
	if s.TotalWalks != len(s.Walks) {
		return fmt.Errorf("%w: %d vs %d", ErrScheduleCount, s.TotalWalks, len(s.Walks))
	}
	if math.IsNaN(s.TotalValue) || math.IsInf(s.TotalValue, 0) || s.TotalValue < 0 {
		return fmt.Errorf("%w: %v", ErrScheduleValue, s.TotalValue)
	}
	for i := 1; i < len(s.Walks); i++ {
		prev, cur := s.Walks[i-1], s.Walks[i]
		if cur.Start.Before(prev.Start) {
			return fmt.Errorf("%w: %s before %s", ErrScheduleUnordered, cur.ID, prev.ID)
		}
		if cur.Start.Before(prev.End) {
			return fmt.Errorf("%w: %s and %s", ErrScheduleOverlap, prev.ID, cur.ID)
		}
	}
	return nil
}
