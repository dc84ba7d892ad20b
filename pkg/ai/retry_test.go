package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestRetry_RecoversAfterTransientFailures(t *testing.T) {
	is := is.New(t)

	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2.0}
	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return NewTranscriptionError(ErrRecoverable, "transient")
		}
		return nil
	})
	is.NoErr(err)
	is.Equal(calls, 3)
}

func TestRetry_FatalStopsImmediately(t *testing.T) {
	is := is.New(t)

	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig, func() error {
		calls++
		return NewGenerationError(ErrFatal, "bad api key")
	})
	is.True(IsFatal(err))
	is.Equal(calls, 1)
}

func TestRetry_ExhaustedReturnsLastError(t *testing.T) {
	is := is.New(t)

	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2.0}
	last := errors.New("still down")
	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return last
	})
	is.Equal(err, last)
	is.Equal(calls, 3) // initial attempt plus two retries
}

func TestRetry_ContextCancelStopsRetrying(t *testing.T) {
	is := is.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Hour, BackoffFactor: 2.0}
	calls := 0
	err := Retry(ctx, cfg, func() error {
		calls++
		return ErrRecoverable
	})
	is.Equal(err, ErrRecoverable)
	is.Equal(calls, 1)
}
