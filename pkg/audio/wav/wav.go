// Package wav encodes and decodes simple 16-bit PCM WAV data. The encoder
// is used to wrap captured speech segments for transcription payloads; the
// decoder backs file-based frame sources.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Header holds the format fields of a parsed WAV file.
type Header struct {
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Encode writes pcm as a complete 16-bit WAV stream.
func Encode(w io.Writer, pcm []byte, sampleRate, numChannels int) error {
	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * 2)
	blockAlign := uint16(numChannels * 2)

	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize+36); err != nil {
		return err
	}
	if _, err := w.Write([]byte("WAVE")); err != nil {
		return err
	}
	if _, err := w.Write([]byte("fmt ")); err != nil {
		return err
	}
	for _, v := range []any{
		uint32(16), // fmt chunk size
		uint16(1),  // PCM
		uint16(numChannels),
		uint32(sampleRate),
		byteRate,
		blockAlign,
		uint16(16), // bits per sample
	} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if _, err := w.Write([]byte("data")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dataSize); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}

// Bytes returns pcm wrapped as an in-memory mono WAV file. It is the
// convenience form used when handing a speech segment to a transcriber.
func Bytes(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(len(pcm) + 44)
	// bytes.Buffer writes cannot fail
	_ = Encode(&buf, pcm, sampleRate, 1)
	return buf.Bytes()
}

// Decode parses a 16-bit PCM WAV stream and returns its header and samples.
func Decode(r io.Reader) (Header, []byte, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Header{}, nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Header{}, nil, fmt.Errorf("not a valid WAV stream")
	}

	var h Header
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Header{}, nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return Header{}, nil, fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			fmtData := make([]byte, size)
			if _, err := io.ReadFull(r, fmtData); err != nil {
				return Header{}, nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if format := binary.LittleEndian.Uint16(fmtData[0:2]); format != 1 {
				return Header{}, nil, fmt.Errorf("only PCM format is supported, got format %d", format)
			}
			h.NumChannels = binary.LittleEndian.Uint16(fmtData[2:4])
			h.SampleRate = binary.LittleEndian.Uint32(fmtData[4:8])
			h.BitsPerSample = binary.LittleEndian.Uint16(fmtData[14:16])
			if h.BitsPerSample != 16 {
				return Header{}, nil, fmt.Errorf("only 16-bit samples are supported, got %d-bit", h.BitsPerSample)
			}
		case "data":
			if h.SampleRate == 0 {
				return Header{}, nil, fmt.Errorf("data chunk before fmt chunk")
			}
			h.DataSize = size
			pcm := make([]byte, size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return Header{}, nil, fmt.Errorf("failed to read audio data: %w", err)
			}
			return h, pcm, nil
		default:
			// skip unknown chunks (LIST, fact, ...)
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return Header{}, nil, fmt.Errorf("failed to skip %q chunk: %w", id, err)
			}
		}
	}
}
