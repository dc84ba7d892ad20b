package capture

import (
	"bytes"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Segment is one utterance: the concatenated frame bytes between a speech
// start and the silence that ended it.
type Segment struct {
	Audio      []byte
	SampleRate int
	Start      time.Time
	End        time.Time
}

// Duration returns the wall-clock span of the segment.
func (s Segment) Duration() time.Duration { return s.End.Sub(s.Start) }

// SegmenterConfig holds the utterance boundary thresholds.
type SegmenterConfig struct {
	// MinSpeech is the minimum utterance duration; shorter runs are
	// discarded silently as noise.
	MinSpeech time.Duration

	// SilenceEnd is how much continuous silence after the last speech frame
	// ends the utterance.
	SilenceEnd time.Duration
}

// DefaultSegmenterConfig returns the standard thresholds.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		MinSpeech:  300 * time.Millisecond,
		SilenceEnd: 700 * time.Millisecond,
	}
}

// Segmenter accumulates frames into utterances from smoothed per-frame
// decisions. It is owned by the capture loop and not safe for concurrent
// use. The clock is injectable for tests.
type Segmenter struct {
	cfg SegmenterConfig
	now func() time.Time

	active     bool
	start      time.Time
	lastSpeech time.Time
	buf        bytes.Buffer
	sampleRate int
}

// NewSegmenter creates a segmenter with the given thresholds.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	if cfg.MinSpeech <= 0 {
		cfg.MinSpeech = DefaultSegmenterConfig().MinSpeech
	}
	if cfg.SilenceEnd <= 0 {
		cfg.SilenceEnd = DefaultSegmenterConfig().SilenceEnd
	}
	return &Segmenter{cfg: cfg, now: time.Now}
}

// Active reports whether an utterance is in progress.
func (s *Segmenter) Active() bool { return s.active }

// Push consumes one frame with its smoothed decision. started is true when
// this frame began a new utterance. seg is non-nil when an utterance ended
// this frame and met the minimum duration; utterances below the minimum are
// discarded with no event.
func (s *Segmenter) Push(frame audio.Frame, speech bool) (started bool, seg *Segment) {
	now := s.now()

	if speech {
		s.lastSpeech = now
		if !s.active {
			s.active = true
			s.start = now
			s.buf.Reset()
			s.sampleRate = frame.SampleRate
			started = true
		}
		s.buf.Write(frame.Data)
		return started, nil
	}

	if !s.active {
		return false, nil
	}

	// Tolerate short pauses: keep buffering silence inside the utterance.
	s.buf.Write(frame.Data)

	if now.Sub(s.lastSpeech) < s.cfg.SilenceEnd {
		return false, nil
	}

	s.active = false

	// The utterance ends at its last speech frame; the silence tail only
	// decides when to close it and never counts toward the minimum.
	duration := s.lastSpeech.Sub(s.start)
	if duration < s.cfg.MinSpeech {
		s.buf.Reset()
		return false, nil
	}

	out := make([]byte, s.buf.Len())
	copy(out, s.buf.Bytes())
	s.buf.Reset()
	return false, &Segment{
		Audio:      out,
		SampleRate: s.sampleRate,
		Start:      s.start,
		End:        s.lastSpeech,
	}
}

// Reset discards any in-progress utterance. Called on mute transitions so a
// pre-mute segment cannot complete after unmute.
func (s *Segmenter) Reset() {
	s.active = false
	s.buf.Reset()
}
