// Package segment holds the segmentation backends: learned ONNX models, a
// matting model, traditional computer-vision methods and a last-resort
// threshold. Every backend satisfies Backend, and availability is tracked in
// a Registry built once at startup.
package segment

import (
	"context"
	"errors"
	"image"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

var (
	// ErrUnavailable marks a backend that could not be loaded or was disabled.
	ErrUnavailable = errors.New("segmentation backend unavailable")
	// ErrNoResult means a backend ran but found nothing usable.
	ErrNoResult = errors.New("segmentation produced no result")
)

// Kind groups backends for selection.
type Kind int

const (
	KindLearned Kind = iota
	KindMatting
	KindTraditional
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindLearned:
		return "learned"
	case KindMatting:
		return "matting"
	case KindTraditional:
		return "traditional"
	case KindFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Result is one backend's mask for an image, same size as the input.
type Result struct {
	Mask    *mask.Mask
	Backend string
	Weight  float64
}

// Backend produces a foreground mask from an image.
type Backend interface {
	Name() string
	Segment(ctx context.Context, img image.Image) (*Result, error)
}

// checkInput rejects nil and empty images.
func checkInput(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return errors.New("empty input image")
	}
	return nil
}
