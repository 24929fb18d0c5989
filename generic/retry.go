package generic

import (
	"context"
	"errors"
	"time"
)

var ErrNoAttempts = errors.New("retry: attempt bound must be positive")

// Retry calls f up to attempts times, waiting delay between attempts and
// doubling it each time. It returns the first Ok result, or the Err from the
// final attempt. Waiting is cut short by context cancellation.
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, f func() (T, error)) Result[T] {
	if attempts < 1 {
		return Err[T](ErrNoAttempts)
	}
	var res Result[T]
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return Err[T](ctx.Err())
			}
		}
		if res = NewResult(f()); res.IsOk() {
			return res
		}
	}
	return res
}

// Retry_ is like Retry, but for functions that return just an error.
func Retry_(ctx context.Context, attempts int, delay time.Duration, f func() error) Result[Void] {
	return Retry(ctx, attempts, delay, func() (Void, error) {
		return NewVoid(), f()
	})
}
