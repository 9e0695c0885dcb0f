package storage

import "errors"

// Storage errors shared by all alert store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting an alert whose
	// (address, sent_at) pair already exists. Alert history is append-only.
	ErrDuplicateKey = errors.New("duplicate key: alert history does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
