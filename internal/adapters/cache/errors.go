package cache

import "errors"

// ErrUnavailable is returned by Ping when caching is disabled.
var ErrUnavailable = errors.New("cache unavailable")
