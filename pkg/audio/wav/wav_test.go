package wav

import (
	"bytes"
	"testing"

	"github.com/matryer/is"
)

func TestBytes_Header(t *testing.T) {
	is := is.New(t)

	pcm := make([]byte, 960) // one 30ms frame at 16kHz mono
	data := Bytes(pcm, 16000)

	h, decoded, err := Decode(bytes.NewReader(data))
	is.NoErr(err)
	is.Equal(h.SampleRate, uint32(16000))
	is.Equal(h.NumChannels, uint16(1))
	is.Equal(h.BitsPerSample, uint16(16))
	is.Equal(len(decoded), len(pcm))
}

func TestDecode_RejectsNonWAV(t *testing.T) {
	is := is.New(t)

	_, _, err := Decode(bytes.NewReader([]byte("RIFFxxxxJUNKdata")))
	is.True(err != nil)
}

func TestDecode_SkipsUnknownChunks(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	pcm := []byte{1, 0, 2, 0}
	is.NoErr(Encode(&buf, pcm, 16000, 1))

	// splice a LIST chunk between fmt and data
	raw := buf.Bytes()
	fmtEnd := 12 + 8 + 16
	spliced := append([]byte{}, raw[:fmtEnd]...)
	spliced = append(spliced, 'L', 'I', 'S', 'T', 4, 0, 0, 0, 'I', 'N', 'F', 'O')
	spliced = append(spliced, raw[fmtEnd:]...)

	_, decoded, err := Decode(bytes.NewReader(spliced))
	is.NoErr(err)
	is.Equal(decoded, pcm)
}
