// Package ai provides common types for the external AI collaborators
// (transcription, generation, synthesis). It defines the error taxonomy
// shared across providers: every failure is classified as recoverable or
// fatal, and component-local errors are translated into state transitions
// by the session rather than propagated to the user.
package ai

import (
	"errors"
	"time"
)

var (
	// ErrRecoverable indicates a temporary provider failure that may succeed
	// if retried. Examples: network timeout, rate limiting, service overload.
	ErrRecoverable = errors.New("recoverable provider error")

	// ErrFatal indicates a permanent provider failure that will not succeed
	// if retried. Examples: invalid API key, unsupported format.
	ErrFatal = errors.New("fatal provider error")
)

// Failure classes for the turn-taking core. Each maps to a recovery policy:
// transcription failures drop the turn, generation failures produce a fixed
// apology, synthesis failures skip the chunk.
var (
	ErrTranscription = errors.New("transcription error")
	ErrGeneration    = errors.New("generation error")
	ErrSynthesis     = errors.New("synthesis error")
)

// IsRecoverable checks if an error should be retried.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error should fail fast.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// RetryConfig configures retry behavior for recoverable errors.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig provides sensible defaults for provider retries.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:    3,
	InitialDelay:  100 * time.Millisecond,
	MaxDelay:      5 * time.Second,
	BackoffFactor: 2.0,
}

// ProviderError wraps an underlying error with its failure class and
// retry classification.
type ProviderError struct {
	Class      error // one of ErrTranscription, ErrGeneration, ErrSynthesis
	Underlying error
	Retryable  bool
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Underlying.Error()
}

func (e *ProviderError) Unwrap() []error {
	sentinel := ErrFatal
	if e.Retryable {
		sentinel = ErrRecoverable
	}
	if e.Class == nil {
		return []error{sentinel, e.Underlying}
	}
	return []error{e.Class, sentinel, e.Underlying}
}

// NewTranscriptionError creates a transcription failure. It is recoverable
// unless the underlying error is fatal.
func NewTranscriptionError(underlying error, message string) error {
	return &ProviderError{Class: ErrTranscription, Underlying: underlying, Retryable: !IsFatal(underlying), Message: message}
}

// NewGenerationError creates a generation failure. It is recoverable unless
// the underlying error is fatal.
func NewGenerationError(underlying error, message string) error {
	return &ProviderError{Class: ErrGeneration, Underlying: underlying, Retryable: !IsFatal(underlying), Message: message}
}

// NewSynthesisError creates a per-chunk synthesis failure. It is recoverable
// unless the underlying error is fatal.
func NewSynthesisError(underlying error, message string) error {
	return &ProviderError{Class: ErrSynthesis, Underlying: underlying, Retryable: !IsFatal(underlying), Message: message}
}
