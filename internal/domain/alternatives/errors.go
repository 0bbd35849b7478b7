package alternatives

import "errors"

// Input-contract errors. They indicate a caller bug, not bad data.
var (
	ErrInvalidMaxSuggestions = errors.New("max suggestions must be positive")
	ErrInvalidStep           = errors.New("search step must be positive")
	ErrInvalidWindow         = errors.New("search window must not be negative")
)
