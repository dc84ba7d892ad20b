// Package fake provides a scripted Transcriber for testing.
package fake

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/ai"
	"github.com/voxloop/voxloop/pkg/ai/stt"
)

// Transcriber returns scripted transcripts in order, then the final one
// repeatedly. An empty script yields empty transcripts (treated as silence).
type Transcriber struct {
	mu      sync.Mutex
	script  []string
	pos     int
	failErr error
	calls   int
}

// NewTranscriber creates a fake transcriber serving the given transcripts.
func NewTranscriber(transcripts ...string) *Transcriber {
	return &Transcriber{script: transcripts}
}

// FailWith makes every subsequent call return err.
func (f *Transcriber) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

// Calls reports how many transcriptions were requested.
func (f *Transcriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Transcriber) Transcribe(ctx context.Context, audio []byte, sampleRate int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failErr != nil {
		return "", f.failErr
	}
	if len(f.script) == 0 {
		return "", nil
	}
	text := f.script[f.pos]
	if f.pos < len(f.script)-1 {
		f.pos++
	}
	return text, nil
}

func (f *Transcriber) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		SupportedLanguages: []string{"en"},
		SampleRates:        []int{16000},
	}
}

var _ stt.Transcriber = (*Transcriber)(nil)

// FailingTranscriber always fails with a recoverable transcription error.
func FailingTranscriber() *Transcriber {
	f := NewTranscriber()
	f.FailWith(ai.NewTranscriptionError(ai.ErrRecoverable, "fake transcription failure"))
	return f
}
