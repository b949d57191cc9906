package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidEntry is returned when a log entry fails validation.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrInvalidCursor is returned when a cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor format")

	// ErrSessionFinished is returned when appending a non-verification
	// entry to a finished session.
	ErrSessionFinished = errors.New("session is finished")
)
