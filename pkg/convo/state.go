// Package convo holds the authoritative conversation state for the dialogue
// turn and the interrupt bookkeeping around barge-ins. All state changes go
// through the state machine's single transition method, which validates the
// move and is the sole writer of the current state.
package convo

import (
	"fmt"
	"sync"
	"time"
)

// State is the current phase of the dialogue turn.
type State int

const (
	StateIdle State = iota
	StateListening
	StateProcessing
	StateSpeaking
	StateInterrupted
	StateWaitingResume
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateListening:
		return "Listening"
	case StateProcessing:
		return "Processing"
	case StateSpeaking:
		return "Speaking"
	case StateInterrupted:
		return "Interrupted"
	case StateWaitingResume:
		return "WaitingResume"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// validNext encodes the transition table. Idle is reachable from anywhere
// (session shutdown/reset).
var validNext = map[State]map[State]bool{
	StateIdle:          {StateListening: true, StateProcessing: true},
	StateListening:     {StateProcessing: true, StateIdle: true},
	StateProcessing:    {StateListening: true, StateSpeaking: true, StateIdle: true},
	StateSpeaking:      {StateInterrupted: true, StateListening: true, StateIdle: true},
	StateInterrupted:   {StateProcessing: true, StateWaitingResume: true, StateIdle: true},
	StateWaitingResume: {StateListening: true, StateProcessing: true, StateSpeaking: true, StateIdle: true},
}

// Observer is notified after every transition with the previous and new
// state. Observers run synchronously on the transitioning goroutine and
// must not block.
type Observer func(prev, next State)

// StateMachine owns the ConversationState. It is safe for concurrent use;
// the capture, playback and control loops all read it, but only
// TransitionTo writes it.
type StateMachine struct {
	mu        sync.Mutex
	state     State
	prev      State
	enteredAt time.Time
	observers []Observer

	now func() time.Time
}

// NewStateMachine creates a machine in StateIdle.
func NewStateMachine() *StateMachine {
	m := &StateMachine{now: time.Now}
	m.enteredAt = m.now()
	return m
}

// Subscribe registers an observer for all subsequent transitions.
func (m *StateMachine) Subscribe(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// State returns the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Previous returns the state before the last transition.
func (m *StateMachine) Previous() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prev
}

// StateDuration returns how long the machine has been in the current state.
func (m *StateMachine) StateDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.enteredAt)
}

// Is reports whether the current state equals s.
func (m *StateMachine) Is(s State) bool {
	return m.State() == s
}

// TransitionTo moves to next if the transition table allows it. A
// transition to the current state is a no-op. Observers are invoked after
// the state has changed, in registration order.
func (m *StateMachine) TransitionTo(next State) error {
	m.mu.Lock()
	if next == m.state {
		m.mu.Unlock()
		return nil
	}
	if !validNext[m.state][next] {
		err := fmt.Errorf("invalid transition %s -> %s", m.state, next)
		m.mu.Unlock()
		return err
	}
	prev := m.state
	m.prev = prev
	m.state = next
	m.enteredAt = m.now()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, obs := range observers {
		obs(prev, next)
	}
	return nil
}

// Reset forces the machine back to Idle without consulting the table, for
// explicit session resets.
func (m *StateMachine) Reset() {
	m.mu.Lock()
	prev := m.state
	m.prev = prev
	m.state = StateIdle
	m.enteredAt = m.now()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	if prev != StateIdle {
		for _, obs := range observers {
			obs(prev, StateIdle)
		}
	}
}
