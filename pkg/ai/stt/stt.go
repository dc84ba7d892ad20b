// Package stt defines the speech-to-text collaborator contract. The core
// hands it a complete speech segment and treats an empty transcript the same
// as silence: the turn is dropped and the session returns to listening.
package stt

import (
	"context"

	"github.com/voxloop/voxloop/pkg/ai"
)

// Transcription failure classification, re-exported for provider packages.
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// Capabilities describes a transcriber provider.
type Capabilities struct {
	SupportedLanguages []string
	SampleRates        []int
}

// Transcriber converts a captured speech segment to text.
type Transcriber interface {
	// Transcribe returns the transcript of raw 16-bit mono PCM, or an empty
	// string when the audio contains no usable speech. A non-nil error is
	// always recoverable from the session's perspective: the turn is dropped.
	Transcribe(ctx context.Context, audio []byte, sampleRate int) (string, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}
