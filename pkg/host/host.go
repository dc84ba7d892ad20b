// Package host bridges a WebSocket frontend to a running session: audio and
// text arrive as JSON messages, session events stream back out. The frontend
// owns the microphone and the speaker; the host owns transcription and the
// dialogue turn.
package host

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxloop/voxloop/pkg/ai/stt"
	"github.com/voxloop/voxloop/pkg/convo"
	"github.com/voxloop/voxloop/pkg/session"
)

// Inbound message types.
const (
	msgAudio  = "audio"
	msgText   = "text"
	msgConfig = "config"
)

// inbound is a frontend message. Audio carries base64 16-bit mono PCM of one
// utterance; config carries attribute updates applied between turns.
type inbound struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	Text       string `json:"text,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Voice      string `json:"voice,omitempty"`
	Persona    string `json:"persona,omitempty"`
}

// outbound is a host-to-frontend message.
type outbound struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	State string `json:"state,omitempty"`
}

// Config tunes the host.
type Config struct {
	// DefaultSampleRate is assumed for audio messages that omit one.
	DefaultSampleRate int

	// DispatchWait bounds how long an accepted utterance waits for the
	// session to become ready for a new turn (it may still be winding down
	// playback after an interrupt).
	DispatchWait time.Duration

	// DispatchPoll is the retry interval within DispatchWait.
	DispatchPoll time.Duration

	// WriteTimeout bounds each frontend write.
	WriteTimeout time.Duration
}

// DefaultConfig returns the standard host settings.
func DefaultConfig() Config {
	return Config{
		DefaultSampleRate: 16000,
		DispatchWait:      500 * time.Millisecond,
		DispatchPoll:      20 * time.Millisecond,
		WriteTimeout:      5 * time.Second,
	}
}

// Host serves one WebSocket connection over a session. It implements
// http.Handler.
type Host struct {
	sess     *session.Session
	stt      stt.Transcriber
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a host around the session. The transcriber handles audio
// messages; the session's own capture path is not involved.
func New(sess *session.Session, transcriber stt.Transcriber, cfg Config, logger *slog.Logger) *Host {
	def := DefaultConfig()
	if cfg.DefaultSampleRate <= 0 {
		cfg.DefaultSampleRate = def.DefaultSampleRate
	}
	if cfg.DispatchWait <= 0 {
		cfg.DispatchWait = def.DispatchWait
	}
	if cfg.DispatchPoll <= 0 {
		cfg.DispatchPoll = def.DispatchPoll
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		sess:   sess,
		stt:    transcriber,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			// The frontend is served from anywhere during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.serve(r.Context(), conn)
}

func (h *Host) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	h.logger.Info("frontend connected", slog.String("remote", conn.RemoteAddr().String()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// gorilla allows one concurrent writer; everything outbound funnels
	// through this channel.
	out := make(chan outbound, 32)
	writerDone := make(chan struct{})
	forwarderDone := make(chan struct{})
	go h.writePump(conn, out, writerDone)
	go func() {
		defer close(forwarderDone)
		h.forwardEvents(ctx, out)
	}()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("frontend read failed", slog.String("error", err.Error()))
			}
			break
		}

		switch msg.Type {
		case msgAudio:
			h.handleAudio(ctx, msg, out)
		case msgText:
			h.handleUserText(ctx, msg.Text, out)
		case msgConfig:
			h.handleConfig(msg, out)
		default:
			h.logger.Debug("unknown message type", slog.String("type", msg.Type))
		}
	}

	cancel()
	<-forwarderDone
	close(out)
	<-writerDone
	h.logger.Info("frontend disconnected")
}

func (h *Host) handleAudio(ctx context.Context, msg inbound, out chan<- outbound) {
	pcm, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		h.logger.Warn("bad audio payload", slog.String("error", err.Error()))
		return
	}
	rate := msg.SampleRate
	if rate <= 0 {
		rate = h.cfg.DefaultSampleRate
	}

	text, err := h.stt.Transcribe(ctx, pcm, rate)
	if err != nil {
		h.logger.Warn("transcription failed", slog.String("error", err.Error()))
		return
	}
	h.handleUserText(ctx, text, out)
}

// handleUserText pushes a user utterance into the session. Valid speech
// while the agent is talking is a barge-in: playback stops first and the
// frontend is told to cut its audio.
func (h *Host) handleUserText(ctx context.Context, text string, out chan<- outbound) {
	if h.sess.State() == convo.StateSpeaking {
		h.sess.Interrupt()
	}

	// The session may need a moment to finish interrupt bookkeeping before
	// it can accept the turn.
	deadline := time.Now().Add(h.cfg.DispatchWait)
	for {
		if h.sess.HandleText(ctx, text) {
			return
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			h.logger.Debug("utterance dropped, session not ready")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(h.cfg.DispatchPoll):
		}
	}
}

func (h *Host) handleConfig(msg inbound, out chan<- outbound) {
	if msg.Voice != "" {
		h.sess.SetVoice(msg.Voice)
	}
	if msg.Persona != "" {
		h.sess.SetPersona(msg.Persona)
	}
	send(out, outbound{Type: "config_ack"})
}

// forwardEvents streams session events to the frontend.
func (h *Host) forwardEvents(ctx context.Context, out chan<- outbound) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-h.sess.Events():
			switch ev.Type {
			case session.EventState:
				send(out, outbound{Type: "state", State: ev.State.String()})
			case session.EventTranscript:
				send(out, outbound{Type: "transcript", Text: ev.Text})
			case session.EventReply:
				send(out, outbound{Type: "reply", Text: ev.Text})
			case session.EventInterrupt:
				// Tells the frontend to stop its local audio immediately.
				send(out, outbound{Type: "interrupt", Text: ev.Text})
			case session.EventResumePrompt:
				send(out, outbound{Type: "resume_prompt", Text: ev.Text})
			case session.EventClosed:
				send(out, outbound{Type: "closed"})
				return
			}
		}
	}
}

func (h *Host) writePump(conn *websocket.Conn, out <-chan outbound, done chan<- struct{}) {
	defer close(done)
	for msg := range out {
		_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Warn("frontend write failed", slog.String("error", err.Error()))
			return
		}
	}
}

// send is best effort; a stalled frontend loses events rather than blocking
// the session.
func send(out chan<- outbound, msg outbound) {
	select {
	case out <- msg:
	default:
	}
}
