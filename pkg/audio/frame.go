// Package audio defines the raw PCM frame type and the microphone-like
// FrameSource contract that feeds the capture pipeline.
package audio

import (
	"fmt"
	"time"
)

// Frame represents exactly one VAD frame period of PCM audio.
// Len(Data) == SamplesPerFrame(cfg) * 2 for 16-bit mono.
// A Frame is immutable once captured; consumers that need to retain the
// bytes past the next read must copy them.
type Frame struct {
	Data       []byte // 16-bit PCM, little-endian, mono
	SampleRate int
	Timestamp  time.Time
}

// Config fixes the capture format. The defaults match WebRTC-style VAD
// requirements: 16 kHz mono 16-bit with 30 ms frames (480 samples).
type Config struct {
	SampleRate  int
	Channels    int
	FramePeriod time.Duration
}

// DefaultConfig returns the standard capture format.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		Channels:    1,
		FramePeriod: 30 * time.Millisecond,
	}
}

// SamplesPerFrame returns the sample count of one frame period.
func (c Config) SamplesPerFrame() int {
	return int(float64(c.SampleRate) * c.FramePeriod.Seconds())
}

// FrameBytes returns the byte length of one 16-bit mono frame.
func (c Config) FrameBytes() int {
	return c.SamplesPerFrame() * c.Channels * 2
}

// NewFrame validates data length against the config and wraps it in a Frame.
func NewFrame(data []byte, cfg Config, ts time.Time) (Frame, error) {
	if len(data) != cfg.FrameBytes() {
		return Frame{}, fmt.Errorf("frame data length mismatch: got %d bytes, expected %d for %dHz %v frames",
			len(data), cfg.FrameBytes(), cfg.SampleRate, cfg.FramePeriod)
	}
	return Frame{Data: data, SampleRate: cfg.SampleRate, Timestamp: ts}, nil
}

// Clone deep-copies the frame so the capture loop can reuse its read buffer.
func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{Data: data, SampleRate: f.SampleRate, Timestamp: f.Timestamp}
}

// Duration returns the wall-clock span of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	samples := len(f.Data) / 2
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}
