package schema

import "errors"

// Package-specific errors
var (
	// ErrInvalidConfig is returned when a source file is structurally invalid
	// or contains a template/expression that does not compile.
	ErrInvalidConfig = errors.New("invalid source config")

	// ErrDuplicateSlug is returned when two source files resolve to the same slug.
	ErrDuplicateSlug = errors.New("duplicate source slug")

	// ErrNoConfigs is returned when no source files are found in any directory.
	ErrNoConfigs = errors.New("no source configs found")

	// ErrNoConfigDirs is returned when Load is called without directories.
	ErrNoConfigDirs = errors.New("no config directories provided")
)
