package schedule

import "errors"

// Rejection reasons. Each rejected candidate carries one of these, possibly
// wrapping a walk validation error.
var (
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrInvalidValue     = errors.New("value must be finite and non-negative")
	ErrDuplicateID      = errors.New("duplicate candidate id")
	ErrCommittedOverlap = errors.New("overlaps a committed walk")
)
