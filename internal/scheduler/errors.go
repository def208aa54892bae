package scheduler

import "errors"

var (
	// ErrNoTargets is returned when a scheduler is built without targets.
	ErrNoTargets = errors.New("no targets to monitor")

	// ErrNilChecker is returned when a scheduler is built without a checker.
	ErrNilChecker = errors.New("checker must not be nil")

	// ErrInvalidConfig is returned for negative durations or round counts.
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrPanic wraps a panic recovered while checking a target.
	ErrPanic = errors.New("panic while checking target")
)
