package browser

import (
	"errors"
	"fmt"
)

// Browser adapter errors.
var (
	// ErrNavigationFault wraps any driver-level failure: a navigation that
	// did not complete, a detached frame, a driver timeout.
	ErrNavigationFault = errors.New("navigation fault")

	// ErrNotFound is returned by Locate when no visible element matches.
	ErrNotFound = errors.New("element not found")

	// ErrLaunch is returned when the browser process cannot be started or
	// connected to. It is not a navigation fault: it means the attempt could
	// not even begin.
	ErrLaunch = errors.New("failed to launch browser")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("browser session is closed")
)

// Fault wraps err as a navigation fault for the named operation.
// A nil err yields nil.
func Fault(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNavigationFault) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrNavigationFault, err)
}

// IsFault reports whether err is a navigation fault.
func IsFault(err error) bool {
	return errors.Is(err, ErrNavigationFault)
}
