package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/voxloop/voxloop/pkg/ai/llm"
	llmfake "github.com/voxloop/voxloop/pkg/ai/llm/fake"
	sttfake "github.com/voxloop/voxloop/pkg/ai/stt/fake"
	"github.com/voxloop/voxloop/pkg/capture"
	"github.com/voxloop/voxloop/pkg/convo"
)

// fakeSource feeds scripted segments to the session.
type fakeSource struct {
	segments chan capture.Segment
	speaking atomic.Bool

	mu    sync.Mutex
	mutes []bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{segments: make(chan capture.Segment, 8)}
}

func (f *fakeSource) Start(ctx context.Context) error  { return nil }
func (f *fakeSource) Stop()                            {}
func (f *fakeSource) Segments() <-chan capture.Segment { return f.segments }
func (f *fakeSource) Speaking() bool                   { return f.speaking.Load() }

func (f *fakeSource) SetMuted(muted bool) {
	f.mu.Lock()
	f.mutes = append(f.mutes, muted)
	f.mu.Unlock()
}

func (f *fakeSource) muteCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.mutes))
	copy(out, f.mutes)
	return out
}

func (f *fakeSource) push() {
	f.segments <- capture.Segment{
		Audio:      make([]byte, 960*20),
		SampleRate: 16000,
		Start:      time.Now().Add(-time.Second),
		End:        time.Now(),
	}
}

// fakeSpeaker plays instantly except for the first blockCalls calls, which
// block until Stop and then report the scripted spoken prefix.
type fakeSpeaker struct {
	blockCalls      int
	interruptSpoken string

	mu      sync.Mutex
	calls   int
	texts   []string
	voice   string
	playing bool
	stop    chan struct{}
}

func (f *fakeSpeaker) Speak(ctx context.Context, text string) (string, bool, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.texts = append(f.texts, text)
	f.playing = true
	f.stop = make(chan struct{}, 1)
	stop := f.stop
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.playing = false
		f.mu.Unlock()
	}()

	if call <= f.blockCalls {
		select {
		case <-stop:
			return f.interruptSpoken, false, nil
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	return text + " ", true, nil
}

func (f *fakeSpeaker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playing && f.stop != nil {
		select {
		case f.stop <- struct{}{}:
		default:
		}
	}
}

func (f *fakeSpeaker) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeSpeaker) SetVoice(voice string) {
	f.mu.Lock()
	f.voice = voice
	f.mu.Unlock()
}

func (f *fakeSpeaker) spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

func fastSessionConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.BargeInPoll = 5 * time.Millisecond
	return cfg
}

// waitEvent drains the event channel until an event of the wanted type
// arrives or the timeout expires.
func waitEvent(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", want)
			return Event{}
		}
	}
}

func TestSession_FullTurn(t *testing.T) {
	is := is.New(t)

	src := newFakeSource()
	transcriber := sttfake.NewTranscriber("what is the weather")
	generator := llmfake.NewGenerator("It is sunny today.")
	speaker := &fakeSpeaker{}

	s := New(src, transcriber, generator, speaker, fastSessionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	src.push()
	ev := waitEvent(t, s.Events(), EventTranscript)
	is.Equal(ev.Text, "what is the weather")
	ev = waitEvent(t, s.Events(), EventReply)
	is.Equal(ev.Text, "It is sunny today.")

	deadline := time.Now().Add(2 * time.Second)
	for len(speaker.spoken()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	is.Equal(speaker.spoken()[0], "It is sunny today.")

	// The generator saw the persona as the leading history entry.
	is.True(len(generator.LastHistory) > 0)
	is.Equal(generator.LastHistory[0].Role, llm.RoleSystem)

	cancel()
	is.Equal(<-done, context.Canceled)
}

func TestSession_ExitPhraseEndsSession(t *testing.T) {
	is := is.New(t)

	src := newFakeSource()
	transcriber := sttfake.NewTranscriber("okay goodbye now")
	generator := llmfake.NewGenerator("unused")
	speaker := &fakeSpeaker{}

	cfg := fastSessionConfig()
	s := New(src, transcriber, generator, speaker, cfg, nil)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	src.push()
	select {
	case err := <-done:
		is.NoErr(err) // exit phrase is a clean shutdown
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end on exit phrase")
	}
	spoken := speaker.spoken()
	is.Equal(len(spoken), 1)
	is.Equal(spoken[0], cfg.Farewell) // farewell spoken, no reply generated
	is.True(generator.LastHistory == nil)
}

func TestSession_FilteredTranscriptDropsTurn(t *testing.T) {
	is := is.New(t)

	src := newFakeSource()
	transcriber := sttfake.NewTranscriber("Thank you.")
	generator := llmfake.NewGenerator("unused")
	speaker := &fakeSpeaker{}

	s := New(src, transcriber, generator, speaker, fastSessionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	src.push()
	deadline := time.Now().Add(time.Second)
	for transcriber.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	is.Equal(s.State(), convo.StateListening) // dropped turn returns to listening
	is.Equal(len(speaker.spoken()), 0)
	is.True(generator.LastHistory == nil)
}

func TestSession_TranscriptionFailureDropsTurn(t *testing.T) {
	is := is.New(t)

	src := newFakeSource()
	generator := llmfake.NewGenerator("unused")
	speaker := &fakeSpeaker{}

	s := New(src, sttfake.FailingTranscriber(), generator, speaker, fastSessionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	src.push()
	time.Sleep(100 * time.Millisecond)
	is.Equal(s.State(), convo.StateListening)
	is.Equal(len(speaker.spoken()), 0)
}

func TestSession_GenerationFailureSpeaksApology(t *testing.T) {
	is := is.New(t)

	src := newFakeSource()
	transcriber := sttfake.NewTranscriber("tell me something")
	speaker := &fakeSpeaker{}

	cfg := fastSessionConfig()
	s := New(src, transcriber, llmfake.FailingGenerator(), speaker, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	src.push()
	ev := waitEvent(t, s.Events(), EventReply)
	is.Equal(ev.Text, cfg.Apology) // the user hears the apology, not the error
}

func TestSession_BargeInThenResumeContinuation(t *testing.T) {
	is := is.New(t)

	full := "The sky is blue. It is vast. The end."
	src := newFakeSource()
	transcriber := sttfake.NewTranscriber("tell me about the sky", "ok")
	generator := llmfake.NewGenerator(full)
	speaker := &fakeSpeaker{
		blockCalls:      1,
		interruptSpoken: "The sky is blue. ",
	}

	s := New(src, transcriber, generator, speaker, fastSessionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	// Turn one: the reply starts playing and the user barges in.
	src.push()
	waitEvent(t, s.Events(), EventReply)
	src.speaking.Store(true)

	ev := waitEvent(t, s.Events(), EventInterrupt)
	is.Equal(ev.Text, "The sky is blue. ")
	deadline := time.Now().Add(time.Second)
	for s.State() != convo.StateInterrupted && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	is.Equal(s.State(), convo.StateInterrupted)

	// The user goes quiet; after the resume threshold the session prompts.
	src.speaking.Store(false)
	waitEvent(t, s.Events(), EventResumePrompt)

	// The prompt played with capture muted, then unmuted.
	mutes := src.muteCalls()
	is.Equal(len(mutes), 2)
	is.True(mutes[0] && !mutes[1])

	// "ok" resumes the interrupted response from where it left off.
	src.push()
	waitEvent(t, s.Events(), EventReply)
	deadline = time.Now().Add(2 * time.Second)
	for len(speaker.spoken()) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	texts := speaker.spoken()
	is.Equal(len(texts), 3) // reply, resume prompt, continuation
	is.True(strings.HasSuffix(texts[2], "It is vast. The end."))
}

func TestSession_HandleText(t *testing.T) {
	is := is.New(t)

	src := newFakeSource()
	generator := llmfake.NewGenerator("Typed reply.")
	speaker := &fakeSpeaker{}

	s := New(src, sttfake.NewTranscriber(), generator, speaker, fastSessionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for s.State() != convo.StateListening && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.HandleText(ctx, "hello from the keyboard")

	ev := waitEvent(t, s.Events(), EventReply)
	is.Equal(ev.Text, "Typed reply.")
}

func TestSession_ConcurrentTextTurnsSingleFarewell(t *testing.T) {
	is := is.New(t)

	src := newFakeSource()
	generator := llmfake.NewGenerator("unused")
	speaker := &fakeSpeaker{}

	cfg := fastSessionConfig()
	s := New(src, sttfake.NewTranscriber(), generator, speaker, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Several hosts hammer typed turns at once. Dispatch happens on the
	// control loop goroutine, so only one farewell is ever spoken.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if s.HandleText(ctx, "goodbye") {
					return
				}
				time.Sleep(2 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	select {
	case err := <-done:
		is.NoErr(err) // exit phrase is a clean shutdown
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end on exit phrase")
	}
	spoken := speaker.spoken()
	is.Equal(len(spoken), 1)
	is.Equal(spoken[0], cfg.Farewell)
}

func TestSession_BargeInNotesUndeliveredReply(t *testing.T) {
	is := is.New(t)

	full := "The sky is blue. It is vast. The end."
	src := newFakeSource()
	transcriber := sttfake.NewTranscriber("tell me about the sky", "what about the sea")
	generator := llmfake.NewGenerator(full, "The sea is deep.")
	speaker := &fakeSpeaker{
		blockCalls:      1,
		interruptSpoken: "The sky is blue. ",
	}

	s := New(src, transcriber, generator, speaker, fastSessionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	src.push()
	waitEvent(t, s.Events(), EventReply)
	src.speaking.Store(true)
	waitEvent(t, s.Events(), EventInterrupt)
	deadline := time.Now().Add(time.Second)
	for s.State() != convo.StateInterrupted && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	src.speaking.Store(false)

	// The next question is long enough to start a fresh turn. The history
	// handed to the generator must record that the first reply was cut off.
	src.push()
	ev := waitEvent(t, s.Events(), EventReply)
	is.Equal(ev.Text, "The sea is deep.")

	var noted string
	for _, m := range generator.LastHistory {
		if m.Role == llm.RoleAssistant {
			noted = m.Content
		}
	}
	is.True(strings.Contains(noted, full))
	is.True(strings.Contains(noted, "interrupted"))
	is.True(strings.Contains(noted, `"The sky is blue."`))
}

func TestSession_VoiceAttributeAppliedBetweenTurns(t *testing.T) {
	is := is.New(t)

	src := newFakeSource()
	transcriber := sttfake.NewTranscriber("hello there")
	generator := llmfake.NewGenerator("Hi.")
	speaker := &fakeSpeaker{}

	s := New(src, transcriber, generator, speaker, fastSessionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	s.SetVoice("nova")
	src.push()
	waitEvent(t, s.Events(), EventReply)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		speaker.mu.Lock()
		v := speaker.voice
		speaker.mu.Unlock()
		if v == "nova" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	speaker.mu.Lock()
	is.Equal(speaker.voice, "nova")
	speaker.mu.Unlock()
}
