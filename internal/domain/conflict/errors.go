package conflict

import "errors"

// ErrInvalidCandidate wraps a walk validation error for the interval being
// checked.
var ErrInvalidCandidate = errors.New("invalid conflict candidate")
