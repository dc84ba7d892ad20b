package audio

import (
	"errors"
	"fmt"
)

// ErrDevice indicates the underlying audio device could not be opened or
// has permanently failed. Read errors during an active session are retried
// by the capture loop and only become fatal after repeated failure.
var ErrDevice = errors.New("audio device error")

// FrameSource pulls fixed-duration frames from a microphone-like input.
// ReadFrame blocks for at most one frame period. Implementations must be
// safe to Stop from a goroutine other than the reader.
type FrameSource interface {
	// Start opens the device. Returns an error wrapping ErrDevice if the
	// device cannot be opened.
	Start() error

	// ReadFrame blocks until the next frame is available. The returned
	// frame's Data may be reused by the source on the next call; callers
	// that buffer frames must Clone them first.
	ReadFrame() (Frame, error)

	// Stop closes the device. Blocked ReadFrame calls return an error
	// after Stop.
	Stop() error
}

// DeviceError wraps a device open/read failure with its source name.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %q: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() []error { return []error{ErrDevice, e.Err} }
