package walk

import "errors"

// Sentinel kinds for record validation. These allow errors.Is from callers.
var (
	ErrEmptyID          = errors.New("empty id")
	ErrInvalidInterval  = errors.New("end must be after start")
	ErrDurationMismatch = errors.New("duration does not match interval")
	ErrNegativeDistance = errors.New("distance must be non-negative")
	ErrUnknownKind      = errors.New("unknown enumerated value")
	ErrInvalidWalker    = errors.New("invalid walker profile")
)
