package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrWalkNotFound   = errors.New("walk not found")
	ErrWalkerNotFound = errors.New("walker not found")
	ErrInvalidWindow  = errors.New("invalid time window")
)
