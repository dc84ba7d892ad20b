// Package openai provides the OpenAI-backed providers: Whisper
// transcription, chat-completion response generation and speech synthesis.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxloop/voxloop/pkg/ai"
	"github.com/voxloop/voxloop/pkg/ai/stt"
	"github.com/voxloop/voxloop/pkg/audio/wav"
)

// minAudio is the shortest clip the Whisper API accepts.
const minAudio = 100 * time.Millisecond

// WhisperTranscriber transcribes speech segments with the Whisper API.
type WhisperTranscriber struct {
	client   *openai.Client
	model    string
	language string
}

// TranscriberConfig holds Whisper settings.
type TranscriberConfig struct {
	APIKey   string
	Model    string // default whisper-1
	Language string // empty means auto-detect
}

// NewWhisperTranscriber creates a Whisper-backed transcriber.
func NewWhisperTranscriber(cfg TranscriberConfig) (*WhisperTranscriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		client:   openai.NewClient(cfg.APIKey),
		model:    model,
		language: cfg.Language,
	}, nil
}

// Transcribe wraps the PCM segment as WAV and sends it to Whisper. Segments
// shorter than the API minimum return an empty transcript without a network
// call.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if sampleRate <= 0 {
		return "", ai.NewTranscriptionError(ai.ErrFatal, fmt.Sprintf("invalid sample rate %d", sampleRate))
	}
	duration := time.Duration(len(pcm)/2) * time.Second / time.Duration(sampleRate)
	if duration < minAudio {
		return "", nil
	}

	wavData := wav.Bytes(pcm, sampleRate)
	var resp openai.AudioResponse
	err := ai.Retry(ctx, ai.DefaultRetryConfig, func() error {
		// The reader is consumed on each attempt.
		req := openai.AudioRequest{
			Model:    w.model,
			Language: w.language,
			Format:   openai.AudioResponseFormatJSON,
			Reader:   bytes.NewReader(wavData),
			FilePath: "segment.wav",
		}
		var err error
		resp, err = w.client.CreateTranscription(ctx, req)
		return err
	})
	if err != nil {
		return "", ai.NewTranscriptionError(err, "whisper transcription failed")
	}
	return resp.Text, nil
}

// Capabilities returns the provider's capabilities.
func (w *WhisperTranscriber) Capabilities() stt.Capabilities {
	return stt.Capabilities{
		SupportedLanguages: []string{
			"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr",
			"pl", "nl", "ar", "sv", "it", "id", "hi", "fi", "vi", "uk",
		},
		SampleRates: []int{16000, 22050, 44100, 48000},
	}
}

var _ stt.Transcriber = (*WhisperTranscriber)(nil)
