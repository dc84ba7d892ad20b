package ai

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, fails fatally, or exhausts the configured
// attempts. Errors carrying ErrFatal stop immediately; everything else is
// treated as recoverable and retried after an exponential backoff capped at
// cfg.MaxDelay. The last error is returned unchanged so callers keep the
// provider's classification.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var err error
	delay := cfg.InitialDelay
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || IsFatal(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
