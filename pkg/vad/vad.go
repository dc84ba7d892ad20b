// Package vad implements per-frame voice activity detection with majority
// smoothing. A single-frame Classifier (energy-based by default, Silero ONNX
// with the silero build tag) produces raw decisions; the Detector keeps a
// bounded window of recent decisions and reports speech only when enough of
// the window agrees, suppressing single-frame flicker.
package vad

import (
	"fmt"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Classifier classifies one frame as speech or non-speech.
type Classifier interface {
	Classify(frame audio.Frame) bool
}

// Config holds the smoothing parameters.
type Config struct {
	// Aggressiveness trades false positives for missed speech, 0 (lenient)
	// to 3 (most aggressive filtering), as in WebRTC VAD.
	Aggressiveness int

	// WindowSize is how many raw decisions are smoothed over. At 30 ms
	// frames the default of 10 covers roughly 300 ms.
	WindowSize int

	// SpeechRatio is the fraction of the window that must be speech for the
	// smoothed decision to be true. The comparison is strict (> not >=):
	// the low default favors sensitivity to speech onset while still
	// damping isolated noise spikes.
	SpeechRatio float64
}

// DefaultConfig returns the standard smoothing parameters.
func DefaultConfig() Config {
	return Config{
		Aggressiveness: 3,
		WindowSize:     10,
		SpeechRatio:    0.3,
	}
}

func (c Config) validate() error {
	if c.Aggressiveness < 0 || c.Aggressiveness > 3 {
		return fmt.Errorf("aggressiveness must be 0-3, got %d", c.Aggressiveness)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	}
	if c.SpeechRatio <= 0 || c.SpeechRatio >= 1 {
		return fmt.Errorf("speech ratio must be in (0,1), got %v", c.SpeechRatio)
	}
	return nil
}

// Detector smooths raw classifier decisions over a sliding window. It is
// owned by the capture loop and is not safe for concurrent use.
type Detector struct {
	classifier Classifier
	cfg        Config

	window []bool
	head   int
	filled int
}

// NewDetector creates a detector around the given classifier.
func NewDetector(classifier Classifier, cfg Config) (*Detector, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Detector{
		classifier: classifier,
		cfg:        cfg,
		window:     make([]bool, cfg.WindowSize),
	}, nil
}

// Process classifies the frame, pushes the raw decision into the window and
// returns the smoothed decision.
func (d *Detector) Process(frame audio.Frame) bool {
	raw := d.classifier.Classify(frame)
	d.window[d.head] = raw
	d.head = (d.head + 1) % len(d.window)
	if d.filled < len(d.window) {
		d.filled++
	}

	trues := 0
	for i := 0; i < d.filled; i++ {
		if d.window[i] {
			trues++
		}
	}
	return float64(trues) > float64(d.filled)*d.cfg.SpeechRatio
}

// Reset discards the decision window. Called on the mute transition so
// pre-mute activity cannot leak into a later turn.
func (d *Detector) Reset() {
	for i := range d.window {
		d.window[i] = false
	}
	d.head = 0
	d.filled = 0
}
