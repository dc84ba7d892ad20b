// Package tts defines the speech-synthesis collaborator contract consumed
// per-chunk by the playback controller.
package tts

import (
	"context"

	"github.com/voxloop/voxloop/pkg/ai"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// Capabilities describes a synthesizer provider.
type Capabilities struct {
	SupportedVoices []string
	SampleRates     []int
	SupportsSpeed   bool
}

// Options selects voice parameters for synthesis. Zero values mean provider
// defaults.
type Options struct {
	Voice string
	Speed float32
}

// Synthesizer renders one text chunk to playable audio bytes (WAV or raw
// PCM, per provider). A failure for one chunk is recoverable: the playback
// controller skips the chunk and continues with the next.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts Options) ([]byte, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}
