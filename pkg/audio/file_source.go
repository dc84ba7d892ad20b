package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/audio/wav"
)

// FileSource replays a 16-bit mono WAV file as a paced frame stream. It is
// used by the CLI for demos and by integration tests; once the file is
// exhausted it emits silence so the capture loop keeps running until Stop.
type FileSource struct {
	cfg    Config
	path   string
	frames [][]byte

	mu      sync.Mutex
	pos     int
	started bool
	stopped chan struct{}
}

// NewFileSource loads path and splits it into frame-period chunks.
func NewFileSource(path string, cfg Config) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DeviceError{Device: path, Err: err}
	}
	defer f.Close()

	h, pcm, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if int(h.SampleRate) != cfg.SampleRate || h.NumChannels != 1 {
		return nil, fmt.Errorf("%s: want %dHz mono, got %dHz %d-channel",
			path, cfg.SampleRate, h.SampleRate, h.NumChannels)
	}

	frameBytes := cfg.FrameBytes()
	var frames [][]byte
	for off := 0; off+frameBytes <= len(pcm); off += frameBytes {
		frames = append(frames, pcm[off:off+frameBytes])
	}

	return &FileSource{cfg: cfg, path: path, frames: frames}, nil
}

// Start marks the source ready. The file is already loaded, so this never
// fails once construction succeeded.
func (s *FileSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	s.stopped = make(chan struct{})
	return nil
}

// ReadFrame returns the next frame, pacing reads to one frame period so the
// downstream pipeline sees a real-time stream.
func (s *FileSource) ReadFrame() (Frame, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return Frame{}, &DeviceError{Device: s.path, Err: fmt.Errorf("source not started")}
	}
	stopped := s.stopped
	var data []byte
	if s.pos < len(s.frames) {
		data = s.frames[s.pos]
		s.pos++
	} else {
		data = make([]byte, s.cfg.FrameBytes()) // silence after EOF
	}
	s.mu.Unlock()

	select {
	case <-stopped:
		return Frame{}, &DeviceError{Device: s.path, Err: fmt.Errorf("source stopped")}
	case <-time.After(s.cfg.FramePeriod):
	}

	return Frame{Data: data, SampleRate: s.cfg.SampleRate, Timestamp: time.Now()}, nil
}

// Stop unblocks any pending read and marks the source closed.
func (s *FileSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	close(s.stopped)
	return nil
}
