package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// ErrSessionClosed is returned by Run after Close.
var ErrSessionClosed = errors.New("onnx session closed")

// SessionConfig configures a single-input image model session.
type SessionConfig struct {
	ModelPath  string
	NumThreads int
	GPU        GPUConfig
}

// Session wraps a dynamic ONNX session bound to the model's first input and
// first output. Run is safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	sess   *onnxruntime_go.DynamicAdvancedSession
	input  onnxruntime_go.InputOutputInfo
	output onnxruntime_go.InputOutputInfo
	path   string
}

// NewSession initializes the runtime if needed and opens cfg.ModelPath.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := Init(cfg.GPU.UseGPU); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxruntime_go.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model io info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has %d inputs and %d outputs", cfg.ModelPath, len(inputs), len(outputs))
	}

	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := ConfigureSessionForGPU(opts, cfg.GPU); err != nil {
		// CPU execution still works, so only log
		slog.Warn("GPU configuration failed, using CPU", "model", cfg.ModelPath, "error", err)
	}
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	sess, err := onnxruntime_go.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	slog.Debug("onnx session ready", "model", cfg.ModelPath,
		"input", inputs[0].Name, "input_shape", inputs[0].Dimensions,
		"output", outputs[0].Name)

	return &Session{sess: sess, input: inputs[0], output: outputs[0], path: cfg.ModelPath}, nil
}

// InputShape returns the declared input dimensions (dynamic axes are -1).
func (s *Session) InputShape() []int64 {
	return []int64(s.input.Dimensions)
}

// ModelPath returns the model file backing the session.
func (s *Session) ModelPath() string { return s.path }

// Run executes the model on t and returns the first output.
func (s *Session) Run(t Tensor) (Tensor, error) {
	if err := VerifyImageTensor(t); err != nil {
		return Tensor{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return Tensor{}, ErrSessionClosed
	}

	in, err := onnxruntime_go.NewTensor(onnxruntime_go.NewShape(t.Shape...), t.Data)
	if err != nil {
		return Tensor{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = in.Destroy() }()

	outs := []onnxruntime_go.Value{nil}
	if err := s.sess.Run([]onnxruntime_go.Value{in}, outs); err != nil {
		return Tensor{}, fmt.Errorf("inference failed: %w", err)
	}
	if outs[0] == nil {
		return Tensor{}, errors.New("model produced no output")
	}
	defer func() { _ = outs[0].Destroy() }()

	ft, ok := outs[0].(*onnxruntime_go.Tensor[float32])
	if !ok {
		return Tensor{}, fmt.Errorf("unexpected output type %T", outs[0])
	}
	data := ft.GetData()
	out := Tensor{Data: make([]float32, len(data)), Shape: append([]int64(nil), ft.GetShape()...)}
	copy(out.Data, data)
	return out, nil
}

// Close releases the native session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil
	}
	err := s.sess.Destroy()
	s.sess = nil
	return err
}
