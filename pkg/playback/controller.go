package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/ai/tts"
)

// Config tunes the chunked playback loop.
type Config struct {
	// Synthesis options forwarded to the synthesizer for every chunk.
	TTS tts.Options

	// SampleRate of the synthesized audio handed to the sink.
	SampleRate int

	// PollInterval is how often the controller checks for a stop request
	// while a chunk is rendering.
	PollInterval time.Duration
}

// DefaultConfig returns the standard playback settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:   24000,
		PollInterval: 10 * time.Millisecond,
	}
}

// Controller speaks a response sentence by sentence: each chunk is
// synthesized, rendered to the sink, and appended to the spoken transcript
// only once it has fully played. Stop takes effect at the next poll tick,
// so the spoken transcript is always a chunk-aligned prefix of the full
// response.
type Controller struct {
	synth tts.Synthesizer
	sink  Sink
	cfg   Config
	log   *slog.Logger

	mu      sync.Mutex
	spoken  string
	playing bool
	stop    bool
}

// New creates a controller. A nil logger falls back to slog.Default.
func New(synth tts.Synthesizer, sink Sink, cfg Config, log *slog.Logger) *Controller {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{synth: synth, sink: sink, cfg: cfg, log: log}
}

// SetVoice switches the synthesis voice for subsequent chunks.
func (c *Controller) SetVoice(voice string) {
	c.mu.Lock()
	c.cfg.TTS.Voice = voice
	c.mu.Unlock()
}

// IsPlaying reports whether a Speak call is currently rendering audio.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// SpokenPortion returns the transcript of fully rendered chunks from the
// current or most recent Speak call. Each chunk contributes itself plus a
// trailing space, which keeps the portion a byte prefix boundary of the
// response text for remainder computation.
func (c *Controller) SpokenPortion() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.spoken
}

// Stop requests that playback halt at the next chunk boundary or poll tick.
// Safe to call at any time, including when nothing is playing.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stop = true
	playing := c.playing
	c.mu.Unlock()
	if playing {
		c.sink.Stop()
	}
}

// Speak renders text chunk by chunk. It returns the spoken transcript and
// whether the whole text was rendered; completed is false when a stop
// request or context cancellation cut playback short. A synthesis failure
// skips that chunk (it stays out of the spoken transcript) and playback
// continues with the next one.
func (c *Controller) Speak(ctx context.Context, text string) (spoken string, completed bool, err error) {
	chunks := SplitSentences(text)

	c.mu.Lock()
	c.spoken = ""
	c.playing = true
	c.stop = false
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.playing = false
		spoken = c.spoken
		c.mu.Unlock()
	}()

	for _, chunk := range chunks {
		if c.stopped() || ctx.Err() != nil {
			return "", false, ctx.Err()
		}

		c.mu.Lock()
		opts := c.cfg.TTS
		c.mu.Unlock()
		pcm, synthErr := c.synth.Synthesize(ctx, chunk, opts)
		if synthErr != nil {
			if ctx.Err() != nil {
				return "", false, ctx.Err()
			}
			c.log.Warn("synthesis failed, skipping chunk",
				slog.Int("chunk_len", len(chunk)),
				slog.String("error", synthErr.Error()))
			continue
		}

		if startErr := c.sink.Start(pcm, c.cfg.SampleRate); startErr != nil {
			return "", false, startErr
		}

		interrupted := c.waitChunk(ctx)

		if !interrupted {
			c.mu.Lock()
			c.spoken += chunk + " "
			c.mu.Unlock()
		}
		if interrupted || ctx.Err() != nil {
			return "", false, ctx.Err()
		}
	}
	return "", true, nil
}

// waitChunk polls until the sink drains or a stop arrives. It reports
// whether the chunk was cut short.
func (c *Controller) waitChunk(ctx context.Context) bool {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for c.sink.Busy() {
		select {
		case <-ctx.Done():
			c.sink.Stop()
			return true
		case <-ticker.C:
			if c.stopped() {
				c.sink.Stop()
				return true
			}
		}
	}
	return c.stopped()
}

func (c *Controller) stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop
}
