//go:build !silero

package vad

import (
	"fmt"

	"github.com/voxloop/voxloop/pkg/audio"
)

// SileroClassifier is unavailable without the silero build tag; the capture
// pipeline falls back to the energy classifier.
type SileroClassifier struct{}

// NewSileroClassifier returns an error when built without -tags=silero.
func NewSileroClassifier(modelPath string, sampleRate int, threshold float32) (*SileroClassifier, error) {
	return nil, fmt.Errorf("silero VAD not available (build with -tags=silero)")
}

// Classify never runs on the stub.
func (s *SileroClassifier) Classify(frame audio.Frame) bool { return false }

// Close is a no-op on the stub.
func (s *SileroClassifier) Close() error { return nil }

var _ Classifier = (*SileroClassifier)(nil)
