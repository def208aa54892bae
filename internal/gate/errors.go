package gate

import "errors"

// ErrNilChannel is returned when a gate is built without a channel.
var ErrNilChannel = errors.New("notification channel must not be nil")

// ErrInvalidThreshold is returned when the block threshold is below one.
var ErrInvalidThreshold = errors.New("block threshold must be at least 1")
