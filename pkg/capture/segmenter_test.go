package capture

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/voxloop/voxloop/pkg/audio"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testFrame() audio.Frame {
	cfg := audio.DefaultConfig()
	return audio.Frame{Data: make([]byte, cfg.FrameBytes()), SampleRate: cfg.SampleRate}
}

func newTestSegmenter(clk *fakeClock) *Segmenter {
	s := NewSegmenter(DefaultSegmenterConfig())
	s.now = clk.now
	return s
}

func TestSegmenter_StartEvent(t *testing.T) {
	is := is.New(t)

	clk := newFakeClock()
	s := newTestSegmenter(clk)

	started, seg := s.Push(testFrame(), true)
	is.True(started)   // first speech frame begins the utterance
	is.True(seg == nil)
	is.True(s.Active())

	started, _ = s.Push(testFrame(), true)
	is.True(!started) // no second start event while speaking
}

func TestSegmenter_SilenceBoundary(t *testing.T) {
	tests := []struct {
		name    string
		silence time.Duration
		ended   bool
	}{
		{"699ms does not end the segment", 699 * time.Millisecond, false},
		{"701ms ends the segment", 701 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			clk := newFakeClock()
			s := newTestSegmenter(clk)

			// 600ms of speech, well past the minimum.
			s.Push(testFrame(), true)
			clk.advance(600 * time.Millisecond)
			s.Push(testFrame(), true)

			clk.advance(tt.silence)
			_, seg := s.Push(testFrame(), false)
			is.Equal(seg != nil, tt.ended)
			is.Equal(s.Active(), !tt.ended)
		})
	}
}

func TestSegmenter_MinimumSpeechDuration(t *testing.T) {
	tests := []struct {
		name    string
		speech  time.Duration
		emitted bool
	}{
		{"299ms is discarded silently", 299 * time.Millisecond, false},
		{"301ms is emitted", 301 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			clk := newFakeClock()
			s := newTestSegmenter(clk)

			start := clk.now()
			s.Push(testFrame(), true)
			clk.advance(tt.speech)
			s.Push(testFrame(), true)

			clk.advance(700 * time.Millisecond)
			_, seg := s.Push(testFrame(), false)

			is.Equal(seg != nil, tt.emitted)
			if seg != nil {
				is.Equal(seg.Start, start)
				is.Equal(seg.Duration(), tt.speech) // silence tail not counted
			}
			is.True(!s.Active()) // discarded or emitted, the utterance is closed
		})
	}
}

func TestSegmenter_ShortPauseDoesNotSplit(t *testing.T) {
	is := is.New(t)

	clk := newFakeClock()
	s := newTestSegmenter(clk)

	s.Push(testFrame(), true)
	clk.advance(400 * time.Millisecond)
	s.Push(testFrame(), true)

	// 500ms pause, below the silence threshold
	clk.advance(500 * time.Millisecond)
	_, seg := s.Push(testFrame(), false)
	is.True(seg == nil)
	is.True(s.Active())

	// speech resumes, then a real silence ends one single segment
	s.Push(testFrame(), true)
	clk.advance(300 * time.Millisecond)
	s.Push(testFrame(), true)
	clk.advance(700 * time.Millisecond)
	_, seg = s.Push(testFrame(), false)
	is.True(seg != nil)
	is.Equal(seg.Duration(), 1200*time.Millisecond)
}

func TestSegmenter_BuffersFrameBytes(t *testing.T) {
	is := is.New(t)

	clk := newFakeClock()
	s := newTestSegmenter(clk)

	frameBytes := audio.DefaultConfig().FrameBytes()

	// 12 speech frames then the closing silence frames
	for i := 0; i < 12; i++ {
		s.Push(testFrame(), true)
		clk.advance(30 * time.Millisecond)
	}
	clk.advance(700 * time.Millisecond)
	_, seg := s.Push(testFrame(), false)

	is.True(seg != nil)
	// 12 speech frames plus the one closing silence frame
	is.Equal(len(seg.Audio), 13*frameBytes)
}

func TestSegmenter_ResetDiscardsInProgress(t *testing.T) {
	is := is.New(t)

	clk := newFakeClock()
	s := newTestSegmenter(clk)

	s.Push(testFrame(), true)
	clk.advance(500 * time.Millisecond)
	s.Push(testFrame(), true)
	s.Reset()
	is.True(!s.Active())

	// A fresh 200ms burst after the reset must not complete the pre-reset
	// segment: 200ms is below the minimum, so nothing is emitted.
	start, _ := s.Push(testFrame(), true)
	is.True(start) // new utterance, not a resurrected one
	clk.advance(200 * time.Millisecond)
	s.Push(testFrame(), true)
	clk.advance(700 * time.Millisecond)
	_, seg := s.Push(testFrame(), false)
	is.True(seg == nil)
}
