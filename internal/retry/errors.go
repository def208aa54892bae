package retry

import "errors"

var (
	// ErrInvalidMaxRetries is returned when MaxRetries is outside 0..MaxAllowedRetries.
	ErrInvalidMaxRetries = errors.New("max retries must be between 0 and 3")

	// ErrNilFactory is returned when no session factory is given.
	ErrNilFactory = errors.New("session factory is nil")

	// ErrNilRunner is returned when no navigation runner is given.
	ErrNilRunner = errors.New("navigation runner is nil")
)
