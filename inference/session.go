// Package inference - Inference sessions.
package inference

import (
	"context"
	"os"
	"sync"

	"github.com/nvr-ai/go-kws/models/model"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// SessionConfig configures an onnxruntime-backed keyword classifier.
type SessionConfig struct {
	// ModelPath is the path to the .onnx model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath is the onnxruntime shared library; empty uses GetSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// InputName is the name of the model's feature input.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName is the name of the model's score output.
	OutputName string `json:"output_name" yaml:"output_name"`
	// Precision is the element type of the model's input and output tensors.
	Precision model.Precision `json:"precision" yaml:"precision"`
	// IntraOpThreads is the number of threads used inside graph nodes. 0 uses the default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
}

// DefaultSessionConfig returns the tensor names of a TFLite model converted with tf2onnx.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		InputName:  "input",
		OutputName: "output",
		Precision:  model.PrecisionINT8,
	}
}

// Session represents a model session from the onnxruntime.
//
// The input and output tensors are bound to the session once and reused, so
// Infer calls are serialized.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	cal     model.Calibration

	// Exactly one pair is set, depending on the configured precision.
	inputInt8   *ort.Tensor[int8]
	outputInt8  *ort.Tensor[int8]
	inputFloat  *ort.Tensor[float32]
	outputFloat *ort.Tensor[float32]
}

var envMu sync.Mutex

// initEnvironment loads the onnxruntime library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// NewSession creates an onnxruntime session for a keyword classifier.
//
// Arguments:
//   - config: The model file, tensor names and precision.
//   - cal: The calibration that defines the tensor shapes and, for FP32
//     models, the conversion to and from the int8 domain.
//
// Returns:
//   - *Session: The session, ready for Infer.
//   - error: An error if the runtime, tensors or session cannot be created.
func NewSession(config SessionConfig, cal model.Calibration) (*Session, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if !config.Precision.Valid() {
		return nil, errors.Errorf("unsupported precision %q", config.Precision)
	}

	libPath := config.LibraryPath
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(cal.Features.Shape()...)
	outputShape := ort.NewShape(1, int64(len(cal.Labels)))

	s := &Session{cal: cal.Clone()}
	var inputs, outputs []ort.ArbitraryTensor
	var err error

	switch config.Precision {
	case model.PrecisionINT8:
		if s.inputInt8, err = ort.NewEmptyTensor[int8](inputShape); err != nil {
			return nil, errors.Wrap(err, "error creating input tensor")
		}
		if s.outputInt8, err = ort.NewEmptyTensor[int8](outputShape); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "error creating output tensor")
		}
		inputs = []ort.ArbitraryTensor{s.inputInt8}
		outputs = []ort.ArbitraryTensor{s.outputInt8}
	case model.PrecisionFP32:
		if s.inputFloat, err = ort.NewEmptyTensor[float32](inputShape); err != nil {
			return nil, errors.Wrap(err, "error creating input tensor")
		}
		if s.outputFloat, err = ort.NewEmptyTensor[float32](outputShape); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "error creating output tensor")
		}
		inputs = []ort.ArbitraryTensor{s.inputFloat}
		outputs = []ort.ArbitraryTensor{s.outputFloat}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if config.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(config.IntraOpThreads); err != nil {
			s.Close()
			return nil, errors.Wrap(err, "error setting intra-op threads")
		}
	}

	s.session, err = ort.NewAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		inputs,
		outputs,
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return s, nil
}

// Infer runs the classifier on one quantized feature tensor.
//
// Arguments:
//   - ctx: Checked before the run; a run in progress is not interrupted.
//   - input: Quantized features, one per input tensor element.
//
// Returns:
//   - []int8: One quantized score per label, owned by the caller.
//   - error: An error if the input has the wrong size or the run fails.
func (s *Session) Infer(ctx context.Context, input []int8) ([]int8, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	if want := s.cal.Features.InputSize(); len(input) != want {
		return nil, errors.Errorf("input has %d elements, model expects %d", len(input), want)
	}

	if s.inputInt8 != nil {
		copy(s.inputInt8.GetData(), input)
	} else {
		s.cal.Input.DequantizeSlice(s.inputFloat.GetData(), input)
	}

	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	var out *tensor.Dense
	if s.outputInt8 != nil {
		out = scoreRow(s.outputInt8.GetData())
	} else {
		out = scoreRow(s.outputFloat.GetData())
	}
	return ScoresFromTensor(out, s.cal.Output)
}

// Close releases the resources associated with the Session.
//
// Returns:
//   - error: Always nil; present to satisfy Engine.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.inputInt8 != nil {
		s.inputInt8.Destroy()
		s.inputInt8 = nil
	}
	if s.outputInt8 != nil {
		s.outputInt8.Destroy()
		s.outputInt8 = nil
	}
	if s.inputFloat != nil {
		s.inputFloat.Destroy()
		s.inputFloat = nil
	}
	if s.outputFloat != nil {
		s.outputFloat.Destroy()
		s.outputFloat = nil
	}
	return nil
}
