// Package fake provides a scripted frame source for testing the capture
// pipeline without an audio device.
package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Source is a fake audio.FrameSource that serves pre-scripted frames.
// When the script runs out it serves silence. Reads are not paced unless
// Delay is set, so tests run at full speed.
type Source struct {
	Cfg   audio.Config
	Delay time.Duration // optional per-read delay

	mu       sync.Mutex
	script   [][]byte
	pos      int
	started  bool
	failNext int
	reads    int
}

// NewSource creates a fake source with the default capture config.
func NewSource() *Source {
	return &Source{Cfg: audio.DefaultConfig()}
}

// Append queues raw frame payloads to serve in order.
func (s *Source) Append(frames ...[]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, frames...)
}

// AppendSilence queues n silent frames.
func (s *Source) AppendSilence(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.script = append(s.script, make([]byte, s.Cfg.FrameBytes()))
	}
}

// FailNextReads makes the next n ReadFrame calls return a device error,
// for exercising the capture loop's retry and fatal paths.
func (s *Source) FailNextReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Reads reports how many frames have been served.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *Source) ReadFrame() (audio.Frame, error) {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return audio.Frame{}, &audio.DeviceError{Device: "fake", Err: fmt.Errorf("not started")}
	}
	if s.failNext > 0 {
		s.failNext--
		return audio.Frame{}, &audio.DeviceError{Device: "fake", Err: fmt.Errorf("scripted read failure")}
	}

	s.reads++
	var data []byte
	if s.pos < len(s.script) {
		data = s.script[s.pos]
		s.pos++
	} else {
		data = make([]byte, s.Cfg.FrameBytes())
	}
	return audio.Frame{Data: data, SampleRate: s.Cfg.SampleRate, Timestamp: time.Now()}, nil
}

func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}
