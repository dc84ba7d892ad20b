// Package fake provides a scripted sink for playback tests.
package fake

import (
	"sync"
	"time"
)

// Sink pretends to render audio. Each chunk stays busy for PlayDuration
// (zero means instantly done). Stop ends the current chunk immediately.
type Sink struct {
	// PlayDuration is how long each chunk reports Busy.
	PlayDuration time.Duration

	// StartErr, when set, is returned by every Start call.
	StartErr error

	mu      sync.Mutex
	chunks  [][]byte
	rates   []int
	busyTil time.Time
	stopped int
}

// NewSink creates a sink whose chunks complete instantly.
func NewSink() *Sink { return &Sink{} }

func (s *Sink) Start(pcm []byte, sampleRate int) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.chunks = append(s.chunks, cp)
	s.rates = append(s.rates, sampleRate)
	s.busyTil = time.Now().Add(s.PlayDuration)
	return nil
}

func (s *Sink) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Before(s.busyTil)
}

func (s *Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busyTil = time.Time{}
	s.stopped++
}

// Chunks returns the payloads rendered so far.
func (s *Sink) Chunks() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Rates returns the sample rate passed with each chunk.
func (s *Sink) Rates() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.rates))
	copy(out, s.rates)
	return out
}

// Stops returns how many times Stop was called.
func (s *Sink) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
