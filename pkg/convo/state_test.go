package convo

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStateMachine_StartsIdle(t *testing.T) {
	is := is.New(t)

	m := NewStateMachine()
	is.Equal(m.State(), StateIdle)
	is.True(m.Is(StateIdle))
}

func TestStateMachine_ValidTransitions(t *testing.T) {
	is := is.New(t)

	m := NewStateMachine()
	path := []State{
		StateListening, StateProcessing, StateSpeaking,
		StateInterrupted, StateWaitingResume, StateProcessing,
		StateSpeaking, StateListening, StateIdle,
	}
	for _, next := range path {
		is.NoErr(m.TransitionTo(next))
		is.Equal(m.State(), next)
	}
}

func TestStateMachine_RejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from []State // valid path into the starting state
		to   State
	}{
		{"idle cannot start speaking", nil, StateSpeaking},
		{"idle cannot be interrupted", nil, StateInterrupted},
		{"listening cannot jump to speaking", []State{StateListening}, StateSpeaking},
		{"processing cannot be interrupted", []State{StateListening, StateProcessing}, StateInterrupted},
		{"speaking cannot wait for resume", []State{StateProcessing, StateSpeaking}, StateWaitingResume},
		{"interrupted cannot resume speaking directly", []State{StateProcessing, StateSpeaking, StateInterrupted}, StateSpeaking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)

			m := NewStateMachine()
			for _, s := range tt.from {
				is.NoErr(m.TransitionTo(s))
			}
			before := m.State()
			err := m.TransitionTo(tt.to)
			is.True(err != nil)
			is.Equal(m.State(), before) // state unchanged after a rejected move
		})
	}
}

func TestStateMachine_SameStateIsNoOp(t *testing.T) {
	is := is.New(t)

	m := NewStateMachine()
	var calls int
	m.Subscribe(func(prev, next State) { calls++ })

	is.NoErr(m.TransitionTo(StateListening))
	is.NoErr(m.TransitionTo(StateListening))
	is.Equal(calls, 1) // the no-op must not notify observers
}

func TestStateMachine_ObserversSeeEveryTransition(t *testing.T) {
	is := is.New(t)

	m := NewStateMachine()
	type move struct{ prev, next State }
	var seen []move
	m.Subscribe(func(prev, next State) { seen = append(seen, move{prev, next}) })

	is.NoErr(m.TransitionTo(StateListening))
	is.NoErr(m.TransitionTo(StateProcessing))
	is.NoErr(m.TransitionTo(StateSpeaking))

	is.Equal(len(seen), 3)
	is.Equal(seen[0], move{StateIdle, StateListening})
	is.Equal(seen[1], move{StateListening, StateProcessing})
	is.Equal(seen[2], move{StateProcessing, StateSpeaking})
	is.Equal(m.Previous(), StateProcessing)
}

func TestStateMachine_StateDuration(t *testing.T) {
	is := is.New(t)

	clk := newFakeClock()
	m := NewStateMachine()
	m.now = clk.now

	is.NoErr(m.TransitionTo(StateListening))
	clk.advance(250 * time.Millisecond)
	is.Equal(m.StateDuration(), 250*time.Millisecond)

	is.NoErr(m.TransitionTo(StateProcessing))
	is.Equal(m.StateDuration(), time.Duration(0)) // clock restarts on entry
}

func TestStateMachine_ResetForcesIdle(t *testing.T) {
	is := is.New(t)

	m := NewStateMachine()
	is.NoErr(m.TransitionTo(StateProcessing))
	is.NoErr(m.TransitionTo(StateSpeaking))
	is.NoErr(m.TransitionTo(StateInterrupted))

	m.Reset()
	is.Equal(m.State(), StateIdle)
	is.Equal(m.Previous(), StateInterrupted)
}

func TestState_String(t *testing.T) {
	is := is.New(t)

	is.Equal(StateIdle.String(), "Idle")
	is.Equal(StateWaitingResume.String(), "WaitingResume")
	is.Equal(State(42).String(), "Unknown(42)")
}
