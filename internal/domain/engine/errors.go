package engine

import "errors"

// ErrInvalidConfig is returned by New when scoring params or the search
// policy fail validation.
var ErrInvalidConfig = errors.New("invalid engine config")
