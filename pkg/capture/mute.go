package capture

import "sync"

// MuteGate is the shared flag that suppresses activity detection while the
// agent speaks through the same acoustic space. It only carries the flag;
// the capture loop owns the detector window and segment buffer and clears
// them itself when it observes a mute transition, so no other goroutine
// ever touches loop-owned state.
type MuteGate struct {
	mu    sync.Mutex
	muted bool
}

// SetMuted sets the flag. Safe to call from any goroutine.
func (g *MuteGate) SetMuted(muted bool) {
	g.mu.Lock()
	g.muted = muted
	g.mu.Unlock()
}

// Muted reports the current flag.
func (g *MuteGate) Muted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.muted
}
