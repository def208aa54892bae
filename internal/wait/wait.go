// Package wait provides the single bounded polling primitive used by every
// navigation step and by the classifier.
//
// Design decision: Booking widgets render asynchronously and frequently
// inside iframes, so "wait until X is visible" is needed in several places.
// Instead of sleeping ad hoc at each call site, every wait goes through
// Until, which enforces a budget, a poll interval and context cancellation
// in one place.
package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the predicate did not hold within the budget.
var ErrTimeout = errors.New("wait budget exceeded")

// DefaultInterval is the poll interval used when none is given.
const DefaultInterval = 500 * time.Millisecond

// Predicate is polled until it reports done or returns an error.
// A returned error stops the wait immediately and is passed through.
type Predicate func(ctx context.Context) (done bool, err error)

// Until polls p every interval until it reports done, returns an error,
// the budget elapses (ErrTimeout) or ctx is cancelled (ctx.Err()).
// The predicate is always evaluated at least once, even with a zero budget.
func Until(ctx context.Context, budget, interval time.Duration, p Predicate) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := p(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if !time.Now().Before(deadline) {
			return ErrTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sleep blocks for d or until ctx is cancelled.
// It returns ctx.Err() when cancelled and nil otherwise.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
