package session

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const defaultSystemPrompt = `You are a helpful, friendly voice assistant. Keep your responses concise and conversational since they will be spoken aloud.

Key behaviors:
- Be natural and human-like in your responses
- Keep answers brief but informative (1-3 sentences when possible)
- If you were interrupted and the user went silent, ask them politely to continue
- Use casual language appropriate for voice conversation
- Avoid using markdown, bullet points, or formatting that doesn't work in speech
- Don't use emojis or special characters

Remember: You're having a voice conversation, not writing text.`

// Config holds the control-loop parameters.
type Config struct {
	// SystemPrompt is the persona seeded into the conversation history.
	SystemPrompt string

	// ExitPhrases end the session when the transcript contains one.
	ExitPhrases []string

	// Farewell is spoken before shutting down on an exit phrase.
	Farewell string

	// Apology is spoken verbatim when response generation fails.
	Apology string

	// MaxHistory bounds the conversation history (user/assistant turns).
	MaxHistory int

	// PollInterval bounds every wait in the control loop; no wait blocks
	// longer than this without rechecking state and cancellation.
	PollInterval time.Duration

	// BargeInPoll is how often user speech is checked during playback.
	BargeInPoll time.Duration

	Filter FilterConfig
}

// DefaultConfig returns the standard session parameters.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: defaultSystemPrompt,
		ExitPhrases: []string{
			"exit", "quit", "goodbye", "bye", "stop",
			"shut down", "close", "end", "terminate",
			"i'm done", "that's all", "thanks bye",
		},
		Farewell:     "Goodbye! Have a great day!",
		Apology:      "I'm sorry, I encountered an error.",
		MaxHistory:   20,
		PollInterval: 100 * time.Millisecond,
		BargeInPoll:  20 * time.Millisecond,
		Filter:       DefaultFilterConfig(),
	}
}

// Env holds the environment-derived provider settings.
type Env struct {
	OpenAIAPIKey string
	STTModel     string
	LLMModel     string
	TTSModel     string
	Voice        string
	SystemPrompt string
}

// LoadEnv reads provider settings from the environment, after loading a
// .env file when one exists in the working directory.
func LoadEnv() Env {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()
	return Env{
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		STTModel:     os.Getenv("VOXLOOP_STT_MODEL"),
		LLMModel:     os.Getenv("VOXLOOP_LLM_MODEL"),
		TTSModel:     os.Getenv("VOXLOOP_TTS_MODEL"),
		Voice:        os.Getenv("VOXLOOP_VOICE"),
		SystemPrompt: os.Getenv("VOXLOOP_SYSTEM_PROMPT"),
	}
}
