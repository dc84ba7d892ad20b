//go:build silero

package vad

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Silero v5 operates on fixed 512-sample windows at 16 kHz and carries a
// recurrent state across calls.
const (
	sileroWindowSamples = 512
	sileroStateSize     = 2 * 1 * 128
)

var (
	ortOnce    sync.Once
	ortInitErr error
)

// ensureOrtEnv initializes the ONNX runtime environment exactly once per
// process.
func ensureOrtEnv() error {
	ortOnce.Do(func() {
		if libPath := os.Getenv("ONNXRUNTIME_LIB"); libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		} else if runtime.GOOS == "darwin" {
			ort.SetSharedLibraryPath("/opt/homebrew/lib/libonnxruntime.dylib")
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// SileroClassifier runs the Silero VAD ONNX model. Incoming 30 ms frames
// are buffered and consumed in 512-sample windows; the classifier reports
// the most recent window probability against the threshold, so its decision
// lags the frame boundary by less than one window.
type SileroClassifier struct {
	threshold  float32
	sampleRate int

	buf        []float32
	lastSpeech bool

	input    *ort.Tensor[float32]
	state    *ort.Tensor[float32]
	stateOut *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	sr       *ort.Tensor[int64]
	session  *ort.DynamicAdvancedSession
}

// NewSileroClassifier loads the model at modelPath. threshold is the speech
// probability cutoff; 0.5 is the usual default.
func NewSileroClassifier(modelPath string, sampleRate int, threshold float32) (*SileroClassifier, error) {
	if err := ensureOrtEnv(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	if threshold <= 0 {
		threshold = 0.5
	}

	input, err := ort.NewTensor(ort.NewShape(1, sileroWindowSamples), make([]float32, sileroWindowSamples))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	state, err := ort.NewTensor(ort.NewShape(2, 1, 128), make([]float32, sileroStateSize))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create state tensor: %w", err)
	}
	stateOut, err := ort.NewEmptyTensor[float32](ort.NewShape(2, 1, 128))
	if err != nil {
		input.Destroy()
		state.Destroy()
		return nil, fmt.Errorf("failed to create state output tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		state.Destroy()
		stateOut.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	sr, err := ort.NewTensor(ort.NewShape(1), []int64{int64(sampleRate)})
	if err != nil {
		input.Destroy()
		state.Destroy()
		stateOut.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create sample-rate tensor: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		nil,
	)
	if err != nil {
		input.Destroy()
		state.Destroy()
		stateOut.Destroy()
		output.Destroy()
		sr.Destroy()
		return nil, fmt.Errorf("failed to load silero model: %w", err)
	}

	return &SileroClassifier{
		threshold:  threshold,
		sampleRate: sampleRate,
		input:      input,
		state:      state,
		stateOut:   stateOut,
		output:     output,
		sr:         sr,
		session:    session,
	}, nil
}

// Classify buffers the frame's samples and runs the model for each complete
// 512-sample window. Between windows it repeats the last decision.
func (s *SileroClassifier) Classify(frame audio.Frame) bool {
	data := frame.Data
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(uint16(data[i]) | uint16(data[i+1])<<8)
		s.buf = append(s.buf, float32(sample)/32768.0)
	}

	for len(s.buf) >= sileroWindowSamples {
		window := s.buf[:sileroWindowSamples]
		s.buf = s.buf[sileroWindowSamples:]

		prob, err := s.infer(window)
		if err != nil {
			// Model failure falls back to the previous decision; the
			// smoothing window absorbs isolated errors.
			continue
		}
		s.lastSpeech = prob >= s.threshold
	}
	return s.lastSpeech
}

func (s *SileroClassifier) infer(window []float32) (float32, error) {
	copy(s.input.GetData(), window)

	err := s.session.Run(
		[]ort.Value{s.input, s.state, s.sr},
		[]ort.Value{s.output, s.stateOut},
	)
	if err != nil {
		return 0, fmt.Errorf("silero inference failed: %w", err)
	}

	// Carry the recurrent state into the next window.
	copy(s.state.GetData(), s.stateOut.GetData())

	out := s.output.GetData()
	if len(out) == 0 {
		return 0, fmt.Errorf("empty silero output")
	}
	return out[0], nil
}

// Close releases the ONNX session and tensors.
func (s *SileroClassifier) Close() error {
	s.session.Destroy()
	s.input.Destroy()
	s.state.Destroy()
	s.stateOut.Destroy()
	s.output.Destroy()
	s.sr.Destroy()
	return nil
}

var _ Classifier = (*SileroClassifier)(nil)
