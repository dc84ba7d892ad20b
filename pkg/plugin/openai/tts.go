package openai

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxloop/voxloop/pkg/ai"
	"github.com/voxloop/voxloop/pkg/ai/tts"
)

// SpeechSynthesizer renders chunks with the speech API. It requests WAV so
// the sink receives PCM it can play without a decoder.
type SpeechSynthesizer struct {
	client *openai.Client
	model  string
	voice  string
}

// SynthesizerConfig holds speech settings.
type SynthesizerConfig struct {
	APIKey string
	Model  string // default tts-1
	Voice  string // default alloy
}

// NewSpeechSynthesizer creates a speech-API-backed synthesizer.
func NewSpeechSynthesizer(cfg SynthesizerConfig) (*SpeechSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.TTSModel1)
	}
	voice := cfg.Voice
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &SpeechSynthesizer{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
		voice:  voice,
	}, nil
}

// Synthesize renders one text chunk to WAV bytes.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, text string, opts tts.Options) ([]byte, error) {
	voice := s.voice
	if opts.Voice != "" {
		voice = opts.Voice
	}
	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	}
	if opts.Speed > 0 {
		req.Speed = float64(opts.Speed)
	}

	resp, err := s.client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, ai.NewSynthesisError(err, "speech synthesis failed")
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, ai.NewSynthesisError(err, "failed to read synthesis response")
	}
	return data, nil
}

// Capabilities returns the provider's capabilities.
func (s *SpeechSynthesizer) Capabilities() tts.Capabilities {
	return tts.Capabilities{
		SupportedVoices: []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		SampleRates:     []int{24000},
		SupportsSpeed:   true,
	}
}

var _ tts.Synthesizer = (*SpeechSynthesizer)(nil)
