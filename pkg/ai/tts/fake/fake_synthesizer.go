// Package fake provides a deterministic Synthesizer for testing playback.
package fake

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/ai"
	"github.com/voxloop/voxloop/pkg/ai/tts"
)

// Synthesizer produces a fixed-size silent PCM payload per chunk and records
// every chunk it was asked to render.
type Synthesizer struct {
	// BytesPerChunk is the payload size returned for each chunk.
	BytesPerChunk int

	mu      sync.Mutex
	chunks  []string
	failOn  map[string]bool
	failErr error
	failAll bool
}

// NewSynthesizer creates a fake synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{BytesPerChunk: 960, failOn: make(map[string]bool)}
}

// FailOn makes synthesis of the exact chunk text fail, for exercising the
// skip-chunk recovery path.
func (f *Synthesizer) FailOn(chunk string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[chunk] = true
}

// FailAll makes every call fail with err.
func (f *Synthesizer) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = true
	f.failErr = err
}

// Chunks returns the chunk texts rendered so far, in order.
func (f *Synthesizer) Chunks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.chunks))
	copy(out, f.chunks)
	return out
}

func (f *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Options) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, f.failErr
	}
	if f.failOn[text] {
		return nil, ai.NewSynthesisError(ai.ErrRecoverable, "fake synthesis failure")
	}
	f.chunks = append(f.chunks, text)
	return make([]byte, f.BytesPerChunk), nil
}

func (f *Synthesizer) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		SupportedVoices: []string{"fake-voice-1", "fake-voice-2"},
		SampleRates:     []int{16000, 24000},
		SupportsSpeed:   true,
	}
}

var _ tts.Synthesizer = (*Synthesizer)(nil)
