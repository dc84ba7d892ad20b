package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/voxloop/voxloop/pkg/ai"
	"github.com/voxloop/voxloop/pkg/ai/llm"
)

// ChatGenerator produces responses with the chat completions API.
type ChatGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// GeneratorConfig holds chat completion settings.
type GeneratorConfig struct {
	APIKey      string
	Model       string // default gpt-4o-mini
	MaxTokens   int
	Temperature float32
}

// NewChatGenerator creates a chat-completion-backed generator.
func NewChatGenerator(cfg GeneratorConfig) (*ChatGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &ChatGenerator{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate sends the history plus the new user turn and returns the reply
// text. The caller owns history bookkeeping; this provider never mutates it.
func (g *ChatGenerator) Generate(ctx context.Context, input string, history []llm.Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	var resp openai.ChatCompletionResponse
	err := ai.Retry(ctx, ai.DefaultRetryConfig, func() error {
		var err error
		resp, err = g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.model,
			Messages:    messages,
			MaxTokens:   g.maxTokens,
			Temperature: g.temperature,
		})
		return err
	})
	if err != nil {
		return "", ai.NewGenerationError(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", ai.NewGenerationError(ai.ErrRecoverable, "no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Capabilities returns the provider's capabilities.
func (g *ChatGenerator) Capabilities() llm.Capabilities {
	return llm.Capabilities{
		SupportedModels: []string{openai.GPT4oMini, openai.GPT4o, openai.GPT3Dot5Turbo},
		MaxTokens:       g.maxTokens,
	}
}

var _ llm.ResponseGenerator = (*ChatGenerator)(nil)
