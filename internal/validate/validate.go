// Package validate checks segmentation results for plausibility and scores
// competing traditional masks.
package validate

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

var (
	// ErrInvalidLayout means the result does not have the expected shape or channels.
	ErrInvalidLayout = errors.New("invalid result layout")
	// ErrForegroundRatio means the strong-foreground fraction is implausible.
	ErrForegroundRatio = errors.New("foreground ratio out of bounds")
)

// Plausible foreground fraction bounds.
const (
	MinForegroundRatio = 0.05
	MaxForegroundRatio = 0.95
)

// Score weights.
const (
	ratioWeight = 0.6
	edgeWeight  = 0.4
)

// Mask checks that m matches the source size and has a plausible
// strong-foreground ratio.
func Mask(m *mask.Mask, width, height int) error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrInvalidLayout)
	}
	if err := m.Check(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if m.Width != width || m.Height != height {
		return fmt.Errorf("%w: mask %dx%d, image %dx%d", ErrInvalidLayout, m.Width, m.Height, width, height)
	}
	return Ratio(m.ForegroundRatio())
}

// Ratio checks a strong-foreground fraction against the bounds.
func Ratio(r float64) error {
	if math.IsNaN(r) || r < MinForegroundRatio || r > MaxForegroundRatio {
		return fmt.Errorf("%w: %.3f", ErrForegroundRatio, r)
	}
	return nil
}

// Cutout validates an RGBA cut-out: it must carry an alpha channel and its
// alpha must pass the ratio check.
func Cutout(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return fmt.Errorf("%w: empty image", ErrInvalidLayout)
	}
	switch img.ColorModel() {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
	default:
		return fmt.Errorf("%w: no alpha channel", ErrInvalidLayout)
	}
	return Ratio(mask.FromAlpha(img).ForegroundRatio())
}

// Score ranks a candidate mask against its source grayscale:
// 0.6*(1-|fg-0.5|) + 0.4*edge overlap. It is in [0, 1] and never rejects.
func Score(gray, m *mask.Mask) float64 {
	if gray == nil || m == nil || !gray.SameSize(m) {
		return 0
	}
	fg := m.ForegroundRatio()
	return ratioWeight*(1-math.Abs(fg-0.5)) + edgeWeight*EdgeAlignment(gray, m)
}

// EdgeAlignment is the Jaccard overlap of Canny edges in the source and the mask.
func EdgeAlignment(gray, m *mask.Mask) float64 {
	return mask.Jaccard(mask.Canny(gray, 50, 150), mask.Canny(m, 50, 150))
}
