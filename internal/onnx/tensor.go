// Package onnx wraps the ONNX Runtime bindings: shared library discovery,
// session lifecycle, CUDA provider options and NCHW image tensors.
package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a row-major float32 tensor; images use NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor wraps CHW data as a [1, C, H, W] tensor.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if len(data) != c*h*w {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), c*h*w)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks the data length against the NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	want := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != want {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), want, t.Shape)
	}
	return nil
}

// Plane returns the H and W of the last two axes of a model output such as
// [1, 1, H, W] or [1, H, W].
func (t Tensor) Plane() (h, w int, err error) {
	if len(t.Shape) < 2 {
		return 0, 0, fmt.Errorf("output rank %d too small", len(t.Shape))
	}
	h, w = int(t.Shape[len(t.Shape)-2]), int(t.Shape[len(t.Shape)-1])
	if h <= 0 || w <= 0 || len(t.Data) < h*w {
		return 0, 0, fmt.Errorf("invalid output shape %v for %d values", t.Shape, len(t.Data))
	}
	return h, w, nil
}

// MinMax returns the smallest and largest values, or zeros for empty data.
func MinMax(data []float32) (lo, hi float32) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}
