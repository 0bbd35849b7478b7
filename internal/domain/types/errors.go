package types

import "errors"

// Sentinel kinds returned by the service. The HTTP layer maps them to status
// codes with errors.Is.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrBackpressure   = errors.New("intake queue full")
	ErrInvalidWalk    = errors.New("invalid walk")
	ErrInvalidWalker  = errors.New("invalid walker")
	ErrInvalidWindow  = errors.New("invalid window")
	ErrWindowTooLarge = errors.New("window too large")
	ErrConflict       = errors.New("walk conflicts with committed walks")
)
