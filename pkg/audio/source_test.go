package audio

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestDeviceError_UnwrapKeepsCause(t *testing.T) {
	is := is.New(t)

	cause := errors.New("device busy")
	var err error = &DeviceError{Device: "default", Err: cause}

	is.True(errors.Is(err, ErrDevice))
	is.True(errors.Is(err, cause))
}
