package openai

import (
	"fmt"
	"os"

	"github.com/voxloop/voxloop/pkg/plugin"
)

func apiKey(cfg map[string]any) (string, error) {
	if key, ok := cfg["api_key"].(string); ok && key != "" {
		return key, nil
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or provide api_key)")
}

func str(cfg map[string]any, key string) string {
	v, _ := cfg[key].(string)
	return v
}

func newTranscriber(cfg map[string]any) (any, error) {
	key, err := apiKey(cfg)
	if err != nil {
		return nil, err
	}
	return NewWhisperTranscriber(TranscriberConfig{
		APIKey:   key,
		Model:    str(cfg, "model"),
		Language: str(cfg, "language"),
	})
}

func newGenerator(cfg map[string]any) (any, error) {
	key, err := apiKey(cfg)
	if err != nil {
		return nil, err
	}
	gc := GeneratorConfig{APIKey: key, Model: str(cfg, "model")}
	if v, ok := cfg["max_tokens"].(int); ok {
		gc.MaxTokens = v
	}
	if v, ok := cfg["temperature"].(float64); ok {
		gc.Temperature = float32(v)
	}
	return NewChatGenerator(gc)
}

func newSynthesizer(cfg map[string]any) (any, error) {
	key, err := apiKey(cfg)
	if err != nil {
		return nil, err
	}
	return NewSpeechSynthesizer(SynthesizerConfig{
		APIKey: key,
		Model:  str(cfg, "model"),
		Voice:  str(cfg, "voice"),
	})
}

func init() {
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "openai",
		Factory:     newTranscriber,
		Description: "OpenAI Whisper transcription",
		Version:     "1.0.0",
	})
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "openai",
		Factory:     newGenerator,
		Description: "OpenAI chat completion response generation",
		Version:     "1.0.0",
	})
	plugin.Register(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "openai",
		Factory:     newSynthesizer,
		Description: "OpenAI speech synthesis",
		Version:     "1.0.0",
	})
}
