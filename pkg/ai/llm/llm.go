// Package llm defines the response-generation collaborator contract and the
// conversation history the session threads through it.
package llm

import (
	"context"
	"strings"

	"github.com/voxloop/voxloop/pkg/ai"
)

var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// Role identifies the author of a history message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in the conversation history.
type Message struct {
	Role    Role
	Content string
}

// History holds the rolling conversation, keeping the system persona as the
// first message and trimming the oldest turns past MaxMessages.
type History struct {
	MaxMessages int // user/assistant messages kept, excluding the system prompt
	messages    []Message
}

// NewHistory creates a history seeded with the system persona prompt.
func NewHistory(systemPrompt string, maxMessages int) *History {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &History{
		MaxMessages: maxMessages,
		messages:    []Message{{Role: RoleSystem, Content: systemPrompt}},
	}
}

// SetSystemPrompt replaces the persona without touching the turns.
func (h *History) SetSystemPrompt(prompt string) {
	if len(h.messages) > 0 && h.messages[0].Role == RoleSystem {
		h.messages[0].Content = prompt
		return
	}
	h.messages = append([]Message{{Role: RoleSystem, Content: prompt}}, h.messages...)
}

// AddUser appends a user turn and trims.
func (h *History) AddUser(content string) {
	h.messages = append(h.messages, Message{Role: RoleUser, Content: content})
	h.trim()
}

// AddAssistant appends an assistant turn and trims.
func (h *History) AddAssistant(content string) {
	h.messages = append(h.messages, Message{Role: RoleAssistant, Content: content})
	h.trim()
}

// NoteInterrupted rewrites the assistant turn whose content equals full to
// record that the user heard only the spoken prefix. Later generations then
// account for the part that was never delivered. A reply that is not in the
// history (farewell, continuation) is left alone.
func (h *History) NoteInterrupted(full, spoken string) {
	for i := len(h.messages) - 1; i >= 0; i-- {
		m := h.messages[i]
		if m.Role != RoleAssistant || m.Content != full {
			continue
		}
		note := "[delivery interrupted by the user"
		if s := strings.TrimSpace(spoken); s != "" {
			note += ` after: "` + s + `"`
		}
		note += "; the rest was not heard]"
		h.messages[i].Content = full + " " + note
		return
	}
}

// Messages returns a copy of the current history.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) trim() {
	if len(h.messages) <= h.MaxMessages+1 {
		return
	}
	head := h.messages[:1] // system prompt
	tail := h.messages[len(h.messages)-h.MaxMessages:]
	h.messages = append(append([]Message{}, head...), tail...)
}

// Capabilities describes a generator provider.
type Capabilities struct {
	SupportedModels []string
	MaxTokens       int
}

// ResponseGenerator produces the agent's reply for a user turn.
type ResponseGenerator interface {
	// Generate returns the response text for input given the conversation so
	// far. The session never propagates a failure to the user; it substitutes
	// a fixed apology instead.
	Generate(ctx context.Context, input string, history []Message) (string, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() Capabilities
}
