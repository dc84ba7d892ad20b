// Package capture runs the always-on microphone loop: read one frame per
// frame period, gate on mute, classify and smooth, segment into utterances,
// and publish speech events and completed segments to the control loop over
// bounded channels. Nothing outside the loop goroutine touches the detector
// window or the segment buffer.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/vad"
)

// EventType identifies a speech boundary notification.
type EventType int

const (
	EventSpeechStart EventType = iota
	EventSpeechEnd
)

func (t EventType) String() string {
	switch t {
	case EventSpeechStart:
		return "speech_start"
	case EventSpeechEnd:
		return "speech_end"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event is a speech boundary notification, delivered in frame-arrival order.
// EventSpeechEnd carries the completed segment; an end event is never
// delivered before all of its frames have been appended.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Segment   *Segment // set for EventSpeechEnd
}

// Config holds the capture pipeline parameters.
type Config struct {
	Audio     audio.Config
	VAD       vad.Config
	Segmenter SegmenterConfig

	// QueueSize bounds the segment and event channels.
	QueueSize int

	// ReadBackoff is the pause after a failed device read.
	ReadBackoff time.Duration

	// MaxReadFailures is how many consecutive read failures are tolerated
	// before capture stops with a fatal error.
	MaxReadFailures int

	// DiagnosticSeconds sizes the rolling raw-audio ring that keeps
	// receiving frames even while muted.
	DiagnosticSeconds int
}

// DefaultConfig returns the standard capture parameters.
func DefaultConfig() Config {
	return Config{
		Audio:             audio.DefaultConfig(),
		VAD:               vad.DefaultConfig(),
		Segmenter:         DefaultSegmenterConfig(),
		QueueSize:         8,
		ReadBackoff:       100 * time.Millisecond,
		MaxReadFailures:   10,
		DiagnosticSeconds: 30,
	}
}

// Capture owns the capture loop.
type Capture struct {
	cfg      Config
	source   audio.FrameSource
	detector *vad.Detector
	seg      *Segmenter
	gate     *MuteGate
	logger   *slog.Logger

	segments chan Segment
	events   chan Event

	speaking atomic.Bool
	level    atomicFloat

	ring *frameRing

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	errMu sync.Mutex
	err   error
}

// New creates a capture pipeline around the given source and classifier.
func New(source audio.FrameSource, classifier vad.Classifier, cfg Config, logger *slog.Logger) (*Capture, error) {
	if source == nil {
		return nil, fmt.Errorf("frame source is required")
	}
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.MaxReadFailures <= 0 {
		cfg.MaxReadFailures = DefaultConfig().MaxReadFailures
	}
	if cfg.ReadBackoff <= 0 {
		cfg.ReadBackoff = DefaultConfig().ReadBackoff
	}
	if cfg.DiagnosticSeconds <= 0 {
		cfg.DiagnosticSeconds = DefaultConfig().DiagnosticSeconds
	}

	detector, err := vad.NewDetector(classifier, cfg.VAD)
	if err != nil {
		return nil, err
	}

	ringFrames := int(time.Duration(cfg.DiagnosticSeconds) * time.Second / cfg.Audio.FramePeriod)

	return &Capture{
		cfg:      cfg,
		source:   source,
		detector: detector,
		seg:      NewSegmenter(cfg.Segmenter),
		gate:     &MuteGate{},
		logger:   logger,
		segments: make(chan Segment, cfg.QueueSize),
		events:   make(chan Event, cfg.QueueSize*4),
		ring:     newFrameRing(ringFrames),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start opens the device and spawns the capture loop. The loop runs until
// Stop is called, the context is cancelled, or reads fail fatally.
func (c *Capture) Start(ctx context.Context) error {
	if err := c.source.Start(); err != nil {
		return fmt.Errorf("failed to start frame source: %w", err)
	}
	go c.run(ctx)
	return nil
}

// Stop requests the loop to exit and waits for it to observe the request at
// its next check. Cancellation is cooperative; no read is preempted.
func (c *Capture) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Segments is the bounded speech queue: one entry per emitted utterance.
func (c *Capture) Segments() <-chan Segment { return c.segments }

// Events delivers speech boundary notifications in frame-arrival order.
func (c *Capture) Events() <-chan Event { return c.events }

// Speaking reports whether an utterance is currently in progress. It is the
// activity signal the session polls for barge-in detection.
func (c *Capture) Speaking() bool { return c.speaking.Load() && !c.gate.Muted() }

// Level returns the most recent frame's normalized RMS level.
func (c *Capture) Level() float64 { return c.level.Load() }

// SetMuted toggles the mute gate. While muted, raw frames still land in the
// diagnostic ring but no classification or segmentation runs; the loop
// clears the detector window and any in-progress segment on the transition.
func (c *Capture) SetMuted(muted bool) { c.gate.SetMuted(muted) }

// Muted reports the mute gate.
func (c *Capture) Muted() bool { return c.gate.Muted() }

// RecentAudio returns a copy of the last d of raw captured audio from the
// diagnostic ring.
func (c *Capture) RecentAudio(d time.Duration) []byte {
	frames := int(d / c.cfg.Audio.FramePeriod)
	return c.ring.Tail(frames)
}

// Done is closed when the capture loop has exited.
func (c *Capture) Done() <-chan struct{} { return c.done }

// Err returns the fatal capture error, if any, once Done is closed.
func (c *Capture) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Capture) run(ctx context.Context) {
	defer close(c.done)
	defer func() {
		if err := c.source.Stop(); err != nil {
			c.logger.Warn("failed to stop frame source", slog.String("error", err.Error()))
		}
	}()

	consecutiveFailures := 0
	prevMuted := c.gate.Muted()

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		frame, err := c.source.ReadFrame()
		if err != nil {
			select {
			case <-c.stop:
				return
			case <-ctx.Done():
				return
			default:
			}

			consecutiveFailures++
			if consecutiveFailures >= c.cfg.MaxReadFailures {
				c.setErr(fmt.Errorf("capture failed after %d consecutive read errors: %w", consecutiveFailures, err))
				c.logger.Error("capture loop giving up",
					slog.Int("consecutive_failures", consecutiveFailures),
					slog.String("error", err.Error()))
				return
			}
			c.logger.Warn("frame read failed, backing off",
				slog.Int("consecutive_failures", consecutiveFailures),
				slog.String("error", err.Error()))
			select {
			case <-c.stop:
				return
			case <-time.After(c.cfg.ReadBackoff):
			}
			continue
		}
		consecutiveFailures = 0

		// The source may reuse its read buffer; everything downstream works
		// on our copy.
		frame = frame.Clone()
		c.ring.Push(frame.Data)
		c.level.Store(vad.RMS(frame.Data))

		muted := c.gate.Muted()
		if muted != prevMuted {
			// Entering mute kills the in-progress segment; leaving mute
			// discards anything stale so pre-mute activity cannot resurrect
			// a dead segment.
			c.detector.Reset()
			c.seg.Reset()
			c.speaking.Store(false)
			prevMuted = muted
		}
		if muted {
			continue
		}

		smoothed := c.detector.Process(frame)
		started, seg := c.seg.Push(frame, smoothed)
		c.speaking.Store(c.seg.Active())

		if started {
			c.publishEvent(Event{Type: EventSpeechStart, Timestamp: frame.Timestamp})
		}
		if seg != nil {
			c.logger.Debug("speech segment emitted",
				slog.Duration("duration", seg.Duration()),
				slog.Int("bytes", len(seg.Audio)))
			select {
			case c.segments <- *seg:
			default:
				c.logger.Warn("segment queue full, dropping utterance",
					slog.Duration("duration", seg.Duration()))
			}
			c.publishEvent(Event{Type: EventSpeechEnd, Timestamp: seg.End, Segment: seg})
		}
	}
}

func (c *Capture) publishEvent(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("event queue full, dropping event", slog.String("type", ev.Type.String()))
	}
}

func (c *Capture) setErr(err error) {
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

// frameRing is a fixed-capacity ring of raw frames for diagnostics.
type frameRing struct {
	mu     sync.Mutex
	frames [][]byte
	head   int
	filled int
}

func newFrameRing(capacity int) *frameRing {
	if capacity < 1 {
		capacity = 1
	}
	return &frameRing{frames: make([][]byte, capacity)}
}

func (r *frameRing) Push(data []byte) {
	r.mu.Lock()
	r.frames[r.head] = data
	r.head = (r.head + 1) % len(r.frames)
	if r.filled < len(r.frames) {
		r.filled++
	}
	r.mu.Unlock()
}

// Tail returns the last n frames concatenated, oldest first.
func (r *frameRing) Tail(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.filled {
		n = r.filled
	}
	var out []byte
	for i := 0; i < n; i++ {
		idx := (r.head - n + i + len(r.frames)) % len(r.frames)
		out = append(out, r.frames[idx]...)
	}
	return out
}

// atomicFloat stores a float64 atomically.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }
func (f *atomicFloat) Load() float64   { return math.Float64frombits(f.bits.Load()) }
