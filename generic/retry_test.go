package generic

import (
	"context"
	"errors"
	"testing"
	"time"

	assert_ "github.com/stretchr/testify/assert"
)

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	assert := assert_.New(t)

	calls := 0
	res := Retry(context.Background(), 3, time.Millisecond, func() (int, error) {
		calls++
		return 42, nil
	})
	assert.True(res.IsOk())
	assert.Equal(42, res.Value)
	assert.Equal(1, calls)
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	assert := assert_.New(t)

	calls := 0
	res := Retry(context.Background(), 3, time.Millisecond, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	assert.True(res.IsOk())
	assert.Equal("ok", res.Value)
	assert.Equal(3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	assert := assert_.New(t)

	wantErr := errors.New("permanent")
	calls := 0
	res := Retry_(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return wantErr
	})
	assert.True(res.IsErr())
	assert.ErrorIs(res.Error, wantErr)
	assert.Equal(3, calls)
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	assert := assert_.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res := Retry_(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("transient")
	})
	assert.True(res.IsErr())
	assert.ErrorIs(res.Error, context.Canceled)
	assert.Equal(1, calls)
}

func TestRetryRejectsNonPositiveAttempts(t *testing.T) {
	assert := assert_.New(t)

	res := Retry_(context.Background(), 0, time.Millisecond, func() error { return nil })
	assert.ErrorIs(res.Error, ErrNoAttempts)
}
