package playback

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/audio/wav"
)

// FileSink renders chunks to numbered WAV files instead of a device. With
// Pace set it stays busy for the chunk's real duration, which preserves
// barge-in timing when no audio hardware is available.
type FileSink struct {
	dir  string
	pace bool

	mu      sync.Mutex
	n       int
	busyTil time.Time
}

// NewFileSink creates a sink writing into dir, creating it if needed.
func NewFileSink(dir string, pace bool) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FileSink{dir: dir, pace: pace}, nil
}

func (s *FileSink) Start(pcm []byte, sampleRate int) error {
	s.mu.Lock()
	s.n++
	name := filepath.Join(s.dir, fmt.Sprintf("chunk-%03d.wav", s.n))
	if s.pace {
		s.busyTil = time.Now().Add(pcmDuration(pcm, sampleRate))
	}
	s.mu.Unlock()

	// Providers emit either a complete WAV stream or raw PCM.
	data := pcm
	if !bytes.HasPrefix(pcm, []byte("RIFF")) {
		data = wav.Bytes(pcm, sampleRate)
	}
	return os.WriteFile(name, data, 0o644)
}

func (s *FileSink) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Before(s.busyTil)
}

func (s *FileSink) Stop() {
	s.mu.Lock()
	s.busyTil = time.Time{}
	s.mu.Unlock()
}

// Written reports how many chunks have been rendered.
func (s *FileSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func pcmDuration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

var _ Sink = (*FileSink)(nil)
