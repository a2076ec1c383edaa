package store

import "errors"

// Package-specific errors
var (
	// ErrUnknownSource is returned when an operation names a slug outside the
	// fixed source set. Client input error; never retryable.
	ErrUnknownSource = errors.New("unknown source")

	// ErrNotFound is returned by Get when no event matches.
	ErrNotFound = errors.New("event not found")
)
