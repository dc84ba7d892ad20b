package vad

import (
	"encoding/binary"
	"math"

	"github.com/voxloop/voxloop/pkg/audio"
)

// RMS thresholds (normalized 0-1) per aggressiveness level. Higher
// aggressiveness demands more energy before a frame counts as speech.
var energyThresholds = [4]float64{0.010, 0.018, 0.030, 0.045}

// EnergyClassifier is the default single-frame classifier: a frame is
// speech when its normalized RMS energy exceeds the aggressiveness
// threshold. It is used where no model-based VAD is available.
type EnergyClassifier struct {
	threshold float64
}

// NewEnergyClassifier creates a classifier for the given aggressiveness
// (clamped to 0-3).
func NewEnergyClassifier(aggressiveness int) *EnergyClassifier {
	if aggressiveness < 0 {
		aggressiveness = 0
	}
	if aggressiveness > 3 {
		aggressiveness = 3
	}
	return &EnergyClassifier{threshold: energyThresholds[aggressiveness]}
}

// Classify reports whether the frame's RMS energy crosses the threshold.
func (e *EnergyClassifier) Classify(frame audio.Frame) bool {
	return RMS(frame.Data) > e.threshold
}

// RMS computes the normalized root-mean-square energy of 16-bit PCM data.
func RMS(data []byte) float64 {
	samples := len(data) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2])))
		sum += s * s
	}
	return math.Sqrt(sum/float64(samples)) / 32768.0
}

var _ Classifier = (*EnergyClassifier)(nil)
