// Package fake provides a scripted ResponseGenerator for testing.
package fake

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/ai"
	"github.com/voxloop/voxloop/pkg/ai/llm"
)

const defaultResponse = "This is a fake response from the fake generator."

// Generator returns scripted responses in order, then the final one
// repeatedly.
type Generator struct {
	mu      sync.Mutex
	script  []string
	pos     int
	failErr error

	// LastHistory records the history passed to the most recent Generate
	// call, for asserting what context the session threads through.
	LastHistory []llm.Message
}

// NewGenerator creates a fake generator serving the given responses.
func NewGenerator(responses ...string) *Generator {
	if len(responses) == 0 {
		responses = []string{defaultResponse}
	}
	return &Generator{script: responses}
}

// FailWith makes every subsequent call return err.
func (f *Generator) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

func (f *Generator) Generate(ctx context.Context, input string, history []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastHistory = history
	if f.failErr != nil {
		return "", f.failErr
	}
	text := f.script[f.pos]
	if f.pos < len(f.script)-1 {
		f.pos++
	}
	return text, nil
}

func (f *Generator) Capabilities() llm.Capabilities {
	return llm.Capabilities{SupportedModels: []string{"fake"}, MaxTokens: 4096}
}

var _ llm.ResponseGenerator = (*Generator)(nil)

// FailingGenerator always fails with a recoverable generation error.
func FailingGenerator() *Generator {
	f := NewGenerator()
	f.FailWith(ai.NewGenerationError(ai.ErrRecoverable, "fake generation failure"))
	return f
}
