package wait

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestUntil tests the polling primitive.
func TestUntil(t *testing.T) {
	t.Parallel()

	t.Run("returns nil once the predicate holds", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := Until(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return calls == 3, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("returns ErrTimeout when the budget is exhausted", func(t *testing.T) {
		t.Parallel()

		err := Until(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("evaluates the predicate once with a zero budget", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := Until(context.Background(), 0, time.Millisecond, func(context.Context) (bool, error) {
			calls++
			return true, nil
		})
		if err != nil || calls != 1 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("passes predicate errors through", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		err := Until(context.Background(), time.Second, time.Millisecond, func(context.Context) (bool, error) {
			return false, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Until(ctx, time.Minute, time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

// TestSleep tests the cancellable sleep.
func TestSleep(t *testing.T) {
	t.Parallel()

	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
