// Package session runs the control loop that turns captured speech into
// spoken replies: drain the speech queue, transcribe, generate, play back,
// and coordinate barge-in recovery through the conversation state machine.
// Every wait is bounded; the loop always comes back around to check state
// and cancellation.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/pkg/ai/llm"
	"github.com/voxloop/voxloop/pkg/ai/stt"
	"github.com/voxloop/voxloop/pkg/capture"
	"github.com/voxloop/voxloop/pkg/convo"
)

// Source is the capture side the session consumes. *capture.Capture
// satisfies it.
type Source interface {
	Start(ctx context.Context) error
	Stop()
	Segments() <-chan capture.Segment
	Speaking() bool
	SetMuted(muted bool)
}

// Speaker is the playback side. *playback.Controller satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text string) (spoken string, completed bool, err error)
	Stop()
	IsPlaying() bool
	SetVoice(voice string)
}

// EventType identifies a session notification.
type EventType int

const (
	EventState EventType = iota
	EventTranscript
	EventReply
	EventInterrupt
	EventResumePrompt
	EventClosed
)

func (t EventType) String() string {
	switch t {
	case EventState:
		return "state"
	case EventTranscript:
		return "transcript"
	case EventReply:
		return "reply"
	case EventInterrupt:
		return "interrupt"
	case EventResumePrompt:
		return "resume_prompt"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a session notification for hosts (state changes, transcripts,
// replies, barge-ins). Delivery is best effort over a bounded channel.
type Event struct {
	Type      EventType
	State     convo.State
	Text      string
	Timestamp time.Time
}

// Session wires capture, the AI collaborators, playback and the
// conversation state into one control loop.
type Session struct {
	id      string
	cfg     Config
	src     Source
	stt     stt.Transcriber
	gen     llm.ResponseGenerator
	speaker Speaker

	sm      *convo.StateMachine
	coord   *convo.Coordinator
	history *llm.History
	filter  *TranscriptFilter
	logger  *slog.Logger

	events chan Event
	texts  chan string

	attrMu  sync.Mutex
	persona string
	voice   string

	// closing is owned by the Run goroutine; all turn dispatch, including
	// typed turns queued through HandleText, happens there.
	closing bool
}

// New creates a session. A nil logger falls back to slog.Default.
func New(src Source, transcriber stt.Transcriber, generator llm.ResponseGenerator, speaker Speaker, cfg Config, logger *slog.Logger) *Session {
	def := DefaultConfig()
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if len(cfg.ExitPhrases) == 0 {
		cfg.ExitPhrases = def.ExitPhrases
	}
	if cfg.Farewell == "" {
		cfg.Farewell = def.Farewell
	}
	if cfg.Apology == "" {
		cfg.Apology = def.Apology
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = def.MaxHistory
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BargeInPoll <= 0 {
		cfg.BargeInPoll = def.BargeInPoll
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	sm := convo.NewStateMachine()
	s := &Session{
		id:      id,
		cfg:     cfg,
		src:     src,
		stt:     transcriber,
		gen:     generator,
		speaker: speaker,
		sm:      sm,
		coord:   convo.NewCoordinator(sm, convo.CoordinatorConfig{}),
		history: llm.NewHistory(cfg.SystemPrompt, cfg.MaxHistory),
		filter:  NewTranscriptFilter(cfg.Filter),
		logger:  logger.With(slog.String("session_id", id)),
		events:  make(chan Event, 32),
		texts:   make(chan string, 4),
	}
	sm.Subscribe(func(prev, next convo.State) {
		s.logger.Debug("state transition",
			slog.String("from", prev.String()),
			slog.String("to", next.String()))
		s.emit(Event{Type: EventState, State: next})
	})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current conversation state.
func (s *Session) State() convo.State { return s.sm.State() }

// Events delivers session notifications. Best effort; slow consumers lose
// events rather than stalling the loop.
func (s *Session) Events() <-chan Event { return s.events }

// Interrupt forces a barge-in from outside the capture path, e.g. a host
// that detected user speech on its own transport.
func (s *Session) Interrupt() {
	if s.sm.Is(convo.StateSpeaking) {
		s.speaker.Stop()
	}
}

// SetVoice schedules a synthesis voice change, applied before the next
// reply.
func (s *Session) SetVoice(voice string) {
	s.attrMu.Lock()
	s.voice = voice
	s.attrMu.Unlock()
}

// SetPersona schedules a system-prompt change, applied before the next
// reply.
func (s *Session) SetPersona(prompt string) {
	s.attrMu.Lock()
	s.persona = prompt
	s.attrMu.Unlock()
}

// Run drives the control loop until the context is cancelled, an exit
// phrase arrives, or the source dies.
func (s *Session) Run(ctx context.Context) error {
	if err := s.src.Start(ctx); err != nil {
		return err
	}
	defer s.src.Stop()
	defer s.emit(Event{Type: EventClosed})
	defer s.sm.Reset()

	s.logger.Info("session started")
	if err := s.sm.TransitionTo(convo.StateListening); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if s.closing {
			s.logger.Info("session ended")
			return nil
		}

		switch s.sm.State() {
		case convo.StateListening, convo.StateWaitingResume:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case seg := <-s.src.Segments():
				s.handleSegment(ctx, seg)
			case text := <-s.texts:
				s.handleText(ctx, text)
			case <-ticker.C:
			}

		case convo.StateInterrupted:
			s.coord.UpdateSpeechActivity(s.src.Speaking())
			if s.coord.ShouldPromptResume() {
				s.promptResume(ctx)
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case seg := <-s.src.Segments():
				// The user kept talking: treat it as a fresh turn.
				s.handleSegment(ctx, seg)
			case text := <-s.texts:
				s.handleText(ctx, text)
			case <-ticker.C:
			}

		case convo.StateIdle:
			s.logger.Info("session ended")
			return nil

		default:
			// Processing and Speaking are handled inline by handleSegment;
			// seeing them here means a transition raced, just wait it out.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

// handleSegment runs one turn: transcribe, filter, dispatch.
func (s *Session) handleSegment(ctx context.Context, seg capture.Segment) {
	turnID := uuid.NewString()
	log := s.logger.With(slog.String("turn_id", turnID))

	fromResume := s.sm.Is(convo.StateWaitingResume)
	if err := s.sm.TransitionTo(convo.StateProcessing); err != nil {
		log.Warn("cannot start turn", slog.String("error", err.Error()))
		return
	}

	text, err := s.stt.Transcribe(ctx, seg.Audio, seg.SampleRate)
	if err != nil {
		// Transcription failure drops the turn; the user just repeats.
		log.Warn("transcription failed", slog.String("error", err.Error()))
		s.toListening()
		return
	}
	text, ok := s.filter.Accept(text)
	if !ok {
		log.Debug("transcript rejected by noise filter")
		s.toListening()
		return
	}
	log.Info("user turn", slog.String("text", text), slog.Duration("audio", seg.Duration()))
	s.dispatchText(ctx, log, text, fromResume)
}

// HandleText queues a user utterance for the control loop, bypassing
// capture and transcription. Used by hosts with text input or their own
// audio transport. It reports whether the turn was accepted; the control
// loop goroutine runs the actual dispatch, so callers never race it.
func (s *Session) HandleText(ctx context.Context, text string) bool {
	text, ok := s.filter.Accept(text)
	if !ok {
		return false
	}
	switch s.sm.State() {
	case convo.StateListening, convo.StateWaitingResume, convo.StateInterrupted:
	default:
		return false
	}
	select {
	case s.texts <- text:
		return true
	default:
		return false
	}
}

// handleText runs one queued typed turn on the control loop goroutine.
func (s *Session) handleText(ctx context.Context, text string) {
	turnID := uuid.NewString()
	log := s.logger.With(slog.String("turn_id", turnID))

	fromResume := s.sm.Is(convo.StateWaitingResume)
	if err := s.sm.TransitionTo(convo.StateProcessing); err != nil {
		log.Warn("cannot start turn", slog.String("error", err.Error()))
		return
	}
	log.Info("user turn", slog.String("text", text))
	s.dispatchText(ctx, log, text, fromResume)
}

// dispatchText runs an accepted transcript: continuation when the user asked
// to resume, otherwise a fresh generated turn. The caller has already moved
// the machine to Processing.
func (s *Session) dispatchText(ctx context.Context, log *slog.Logger, text string, fromResume bool) {
	s.emit(Event{Type: EventTranscript, Text: text})

	if fromResume && s.coord.HasContext() && s.coord.ShouldOfferContinuation(text) {
		s.speakContinuation(ctx, log)
		return
	}
	s.coord.ClearContext()
	s.processInput(ctx, log, text)
}

func (s *Session) processInput(ctx context.Context, log *slog.Logger, text string) {
	if s.isExit(text) {
		log.Info("exit phrase detected")
		s.closing = true
		s.speakResponse(ctx, log, s.cfg.Farewell, text)
		s.sm.Reset()
		return
	}

	s.applyAttributes()

	reply, err := s.gen.Generate(ctx, text, s.history.Messages())
	if err != nil {
		// The user never hears a raw error, only the fixed apology.
		log.Warn("generation failed", slog.String("error", err.Error()))
		reply = s.cfg.Apology
	}
	s.history.AddUser(text)
	s.history.AddAssistant(reply)

	s.speakResponse(ctx, log, reply, text)
}

// speakResponse plays reply while watching for barge-in. On interruption it
// hands the spoken prefix to the coordinator; on completion it returns to
// listening.
func (s *Session) speakResponse(ctx context.Context, log *slog.Logger, reply, question string) {
	if err := s.sm.TransitionTo(convo.StateSpeaking); err != nil {
		log.Warn("cannot speak", slog.String("error", err.Error()))
		return
	}
	s.emit(Event{Type: EventReply, Text: reply})

	type outcome struct {
		spoken    string
		completed bool
		err       error
	}
	done := make(chan outcome, 1)
	go func() {
		spoken, completed, err := s.speaker.Speak(ctx, reply)
		done <- outcome{spoken, completed, err}
	}()

	bargeIn := time.NewTicker(s.cfg.BargeInPoll)
	defer bargeIn.Stop()

	var res outcome
wait:
	for {
		select {
		case res = <-done:
			break wait
		case <-bargeIn.C:
			if s.src.Speaking() && s.speaker.IsPlaying() {
				s.speaker.Stop()
			}
		}
	}

	if res.err != nil {
		log.Warn("playback failed", slog.String("error", res.err.Error()))
	}
	if res.completed || s.closing {
		s.toListening()
		return
	}

	log.Info("barge-in",
		slog.Int("spoken_chars", len(res.spoken)),
		slog.Int("total_chars", len(reply)))
	s.emit(Event{Type: EventInterrupt, Text: res.spoken})
	if err := s.coord.HandleInterrupt(reply, res.spoken, question); err != nil {
		log.Warn("interrupt bookkeeping failed", slog.String("error", err.Error()))
		s.toListening()
		return
	}
	s.history.NoteInterrupted(reply, res.spoken)
}

// promptResume speaks a short filler asking the user to go on. The capture
// source is muted for its duration so the prompt's own audio cannot trigger
// detection.
func (s *Session) promptResume(ctx context.Context) {
	prompt := s.coord.ResumePrompt()
	s.logger.Info("prompting user to resume", slog.Int("interrupt_count", s.coord.Count()))
	s.emit(Event{Type: EventResumePrompt, Text: prompt})

	s.src.SetMuted(true)
	_, _, err := s.speaker.Speak(ctx, prompt)
	s.src.SetMuted(false)
	if err != nil {
		s.logger.Warn("resume prompt playback failed", slog.String("error", err.Error()))
	}
}

// speakContinuation resumes the interrupted response from where it left
// off, with a connector phrase.
func (s *Session) speakContinuation(ctx context.Context, log *slog.Logger) {
	ic, _ := s.coord.Context()
	text, ok := s.coord.ContinuationText()
	if !ok {
		s.toListening()
		return
	}
	log.Info("continuing interrupted response", slog.Int("remaining_chars", len(text)))
	s.speakResponse(ctx, log, text, ic.Question)
}

func (s *Session) applyAttributes() {
	s.attrMu.Lock()
	persona, voice := s.persona, s.voice
	s.persona, s.voice = "", ""
	s.attrMu.Unlock()

	if persona != "" {
		s.history.SetSystemPrompt(persona)
		s.logger.Info("persona updated")
	}
	if voice != "" {
		s.speaker.SetVoice(voice)
		s.logger.Info("voice updated", slog.String("voice", voice))
	}
}

func (s *Session) toListening() {
	if err := s.sm.TransitionTo(convo.StateListening); err != nil {
		s.logger.Warn("cannot return to listening", slog.String("error", err.Error()))
	}
}

func (s *Session) isExit(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range s.cfg.ExitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (s *Session) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case s.events <- ev:
	default:
	}
}
