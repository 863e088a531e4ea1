package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when appending a trade that already
	// exists. The trade log is append-only, updates are not allowed.
	ErrDuplicateKey = errors.New("duplicate key: trade log is append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
