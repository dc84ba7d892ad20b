package playback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"github.com/voxloop/voxloop/pkg/audio/wav"
)

func TestFileSink_WrapsRawPCM(t *testing.T) {
	is := is.New(t)

	dir := t.TempDir()
	sink, err := NewFileSink(dir, false)
	is.NoErr(err)

	pcm := make([]byte, 3200)
	is.NoErr(sink.Start(pcm, 16000))
	is.Equal(sink.Written(), 1)

	f, err := os.Open(filepath.Join(dir, "chunk-001.wav"))
	is.NoErr(err)
	defer f.Close()

	h, data, err := wav.Decode(f)
	is.NoErr(err)
	is.Equal(int(h.SampleRate), 16000)
	is.Equal(len(data), len(pcm))
}

func TestFileSink_PassesThroughWAV(t *testing.T) {
	is := is.New(t)

	dir := t.TempDir()
	sink, err := NewFileSink(dir, false)
	is.NoErr(err)

	encoded := wav.Bytes(make([]byte, 960), 24000)
	is.NoErr(sink.Start(encoded, 24000))

	got, err := os.ReadFile(filepath.Join(dir, "chunk-001.wav"))
	is.NoErr(err)
	is.Equal(got, encoded) // already WAV, written verbatim

	is.True(!sink.Busy()) // unpaced sink is never busy
}
