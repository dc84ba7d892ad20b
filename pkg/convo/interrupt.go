package convo

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// InterruptContext captures what was being said when the user barged in.
// It exists only between the barge-in and either its consumption (the
// continuation was served) or the start of a fresh turn.
type InterruptContext struct {
	FullResponse  string
	SpokenPortion string
	RemainingText string // FullResponse minus SpokenPortion, trimmed
	Question      string // the user question that prompted FullResponse
	Timestamp     time.Time
}

// CoordinatorConfig tunes the barge-in recovery heuristics. The keyword
// list and short-reply cutoff are tuning artifacts carried over from voice
// UX testing; they are data, not logic, so hosts can adjust them per
// language.
type CoordinatorConfig struct {
	// ResumeSilence is how long the user must stay silent after a barge-in
	// before the agent prompts them to continue.
	ResumeSilence time.Duration

	// WidenPromptsAfter is the interrupt count past which the prompt pool
	// grows more accommodating.
	WidenPromptsAfter int

	// ContinuationKeywords mark a reply as "please continue".
	ContinuationKeywords []string

	// ShortReplyWords treats any reply of at most this many words as a
	// continuation request, keywords or not.
	ShortReplyWords int

	ResumePrompts        []string
	AccommodatingPrompts []string
	Connectors           []string
}

// DefaultCoordinatorConfig returns the standard heuristics.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		ResumeSilence:     1500 * time.Millisecond,
		WidenPromptsAfter: 2,
		ContinuationKeywords: []string{
			"continue", "go on", "go ahead", "carry on",
			"keep going", "yes", "yeah", "yep", "sure",
			"please", "ok", "okay", "never mind", "nevermind",
			"nothing", "sorry", "my bad", "oops",
		},
		ShortReplyWords: 3,
		ResumePrompts: []string{
			"Yes? I'm listening.",
			"Go ahead, I'm all ears.",
			"Sorry, what were you going to say?",
			"Yes, please continue.",
			"I'm listening, go ahead.",
			"What's on your mind?",
			"You have my attention.",
		},
		AccommodatingPrompts: []string{
			"No worries, take your time. What would you like to say?",
			"I'm here. Please, go ahead.",
		},
		Connectors: []string{"As I was saying, ", "So, ", "Anyway, ", ""},
	}
}

// Coordinator owns the InterruptContext and the interrupt counter. It reads
// conversation state from the state machine and requests transitions
// through it; it never mutates state directly.
type Coordinator struct {
	cfg CoordinatorConfig
	sm  *StateMachine

	mu           sync.Mutex
	ctx          *InterruptContext
	count        int
	silenceStart time.Time // zero while the user is speaking

	now func() time.Time
	rng *rand.Rand
}

// NewCoordinator creates a coordinator bound to the state machine.
func NewCoordinator(sm *StateMachine, cfg CoordinatorConfig) *Coordinator {
	def := DefaultCoordinatorConfig()
	if cfg.ResumeSilence <= 0 {
		cfg.ResumeSilence = def.ResumeSilence
	}
	if cfg.WidenPromptsAfter <= 0 {
		cfg.WidenPromptsAfter = def.WidenPromptsAfter
	}
	if len(cfg.ContinuationKeywords) == 0 {
		cfg.ContinuationKeywords = def.ContinuationKeywords
	}
	if cfg.ShortReplyWords <= 0 {
		cfg.ShortReplyWords = def.ShortReplyWords
	}
	if len(cfg.ResumePrompts) == 0 {
		cfg.ResumePrompts = def.ResumePrompts
	}
	if len(cfg.AccommodatingPrompts) == 0 {
		cfg.AccommodatingPrompts = def.AccommodatingPrompts
	}
	if len(cfg.Connectors) == 0 {
		cfg.Connectors = def.Connectors
	}
	return &Coordinator{
		cfg: cfg,
		sm:  sm,
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// HandleInterrupt records a barge-in: it snapshots the interrupted
// response, computes the unspoken remainder, bumps the counter and
// transitions the conversation to Interrupted.
func (c *Coordinator) HandleInterrupt(fullResponse, spokenPortion, question string) error {
	remaining := ""
	if len(spokenPortion) < len(fullResponse) {
		remaining = strings.TrimSpace(fullResponse[len(spokenPortion):])
	}

	c.mu.Lock()
	c.ctx = &InterruptContext{
		FullResponse:  fullResponse,
		SpokenPortion: spokenPortion,
		RemainingText: remaining,
		Question:      question,
		Timestamp:     c.now(),
	}
	c.count++
	c.silenceStart = time.Time{}
	c.mu.Unlock()

	return c.sm.TransitionTo(StateInterrupted)
}

// UpdateSpeechActivity tracks user activity during the Interrupted state so
// the silence clock only runs while the user is actually quiet.
func (c *Coordinator) UpdateSpeechActivity(speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if speaking {
		c.silenceStart = time.Time{}
		return
	}
	if c.silenceStart.IsZero() {
		c.silenceStart = c.now()
	}
}

// ShouldPromptResume reports whether the user interrupted, went quiet, and
// has now been silent for the full resume threshold.
func (c *Coordinator) ShouldPromptResume() bool {
	if !c.sm.Is(StateInterrupted) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.silenceStart.IsZero() {
		return false
	}
	return c.now().Sub(c.silenceStart) >= c.cfg.ResumeSilence
}

// ResumePrompt picks a natural filler prompt and, as a side effect, moves
// the conversation to WaitingResume. The pool widens once the user has
// interrupted more than WidenPromptsAfter times.
func (c *Coordinator) ResumePrompt() string {
	c.mu.Lock()
	pool := c.cfg.ResumePrompts
	if c.count > c.cfg.WidenPromptsAfter {
		pool = append(append([]string{}, pool...), c.cfg.AccommodatingPrompts...)
	}
	prompt := pool[c.rng.Intn(len(pool))]
	c.mu.Unlock()

	// Best effort: if the state moved under us the prompt is still usable.
	_ = c.sm.TransitionTo(StateWaitingResume)
	return prompt
}

// HasContext reports whether an unspoken remainder is available to resume.
func (c *Coordinator) HasContext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx != nil && c.ctx.RemainingText != ""
}

// Context returns a copy of the current interrupt context, if any.
func (c *Coordinator) Context() (InterruptContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return InterruptContext{}, false
	}
	return *c.ctx, true
}

// ShouldOfferContinuation decides whether the user's reply after a resume
// prompt means "keep going". Either a continuation keyword or a very short
// reply counts; ambiguous short replies deliberately default to resuming.
func (c *Coordinator) ShouldOfferContinuation(reply string) bool {
	reply = strings.ToLower(strings.TrimSpace(reply))
	if reply == "" {
		return true
	}
	for _, kw := range c.cfg.ContinuationKeywords {
		if strings.Contains(reply, kw) {
			return true
		}
	}
	return len(strings.Fields(reply)) <= c.cfg.ShortReplyWords
}

// ContinuationText returns the unspoken remainder prefixed with a connector
// phrase (possibly none) and clears the context; the continuation is
// single-use.
func (c *Coordinator) ContinuationText() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil || c.ctx.RemainingText == "" {
		return "", false
	}
	connector := c.cfg.Connectors[c.rng.Intn(len(c.cfg.Connectors))]
	text := connector + c.ctx.RemainingText
	c.ctx = nil
	return text, true
}

// ClearContext drops the stored context, e.g. when a fresh turn begins.
func (c *Coordinator) ClearContext() {
	c.mu.Lock()
	c.ctx = nil
	c.mu.Unlock()
}

// Count returns the number of barge-ins this session.
func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Reset clears the context, the counter and the silence clock. Only an
// explicit session reset does this.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.ctx = nil
	c.count = 0
	c.silenceStart = time.Time{}
	c.mu.Unlock()
}
