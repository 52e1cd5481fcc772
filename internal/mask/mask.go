// Package mask provides the single-channel foreground confidence buffer used
// throughout the cutout pipeline together with the raster primitives that
// operate on it (blur, edge detection, morphology, labeling, thresholds).
//
// Values are float32 in [0, 1]; 0 is background and 1 is foreground.
package mask

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

var (
	// ErrSizeMismatch is returned when two buffers that must share dimensions do not.
	ErrSizeMismatch = errors.New("mask: size mismatch")
	// ErrEmpty is returned for zero-sized or nil masks.
	ErrEmpty = errors.New("mask: empty")
)

// StrongForeground is the alpha level above which a pixel counts as strongly foreground.
const StrongForeground = float32(128.0 / 255.0)

// Mask is a width*height buffer of foreground confidences in row-major order.
type Mask struct {
	Width  int
	Height int
	Pix    []float32
}

// New allocates a zeroed mask.
func New(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// Filled allocates a mask with every pixel set to v (clipped).
func Filled(width, height int, v float32) *Mask {
	m := New(width, height)
	v = clip01(v)
	for i := range m.Pix {
		m.Pix[i] = v
	}
	return m
}

// Check reports whether the mask is structurally usable.
func (m *Mask) Check() error {
	if m == nil || m.Width <= 0 || m.Height <= 0 {
		return ErrEmpty
	}
	if len(m.Pix) != m.Width*m.Height {
		return fmt.Errorf("mask: buffer length %d does not match %dx%d", len(m.Pix), m.Width, m.Height)
	}
	return nil
}

// Bounds returns the mask rectangle anchored at the origin.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// SameSize reports whether both masks share dimensions.
func (m *Mask) SameSize(o *Mask) bool {
	return m != nil && o != nil && m.Width == o.Width && m.Height == o.Height
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Width: m.Width, Height: m.Height, Pix: make([]float32, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// At returns the value at (x, y), clamping coordinates to the border.
func (m *Mask) At(x, y int) float32 {
	return m.Pix[clampInt(y, 0, m.Height-1)*m.Width+clampInt(x, 0, m.Width-1)]
}

// Set writes v at (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v float32) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Clip clamps every value into [0, 1] in place and returns m.
func (m *Mask) Clip() *Mask {
	for i, v := range m.Pix {
		m.Pix[i] = clip01(v)
	}
	return m
}

// IsZero reports whether every pixel is zero.
func (m *Mask) IsZero() bool {
	for _, v := range m.Pix {
		if v != 0 {
			return false
		}
	}
	return true
}

// ForegroundRatio returns the fraction of pixels strictly above StrongForeground.
func (m *Mask) ForegroundRatio() float64 {
	return m.RatioAbove(StrongForeground)
}

// RatioAbove returns the fraction of pixels strictly above t.
func (m *Mask) RatioAbove(t float32) float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	n := 0
	for _, v := range m.Pix {
		if v > t {
			n++
		}
	}
	return float64(n) / float64(len(m.Pix))
}

// Mean returns the average value.
func (m *Mask) Mean() float64 {
	if len(m.Pix) == 0 {
		return 0
	}
	var sum float64
	for _, v := range m.Pix {
		sum += float64(v)
	}
	return sum / float64(len(m.Pix))
}

// Binary returns a boolean plane of pixels strictly above t.
func (m *Mask) Binary(t float32) []bool {
	out := make([]bool, len(m.Pix))
	for i, v := range m.Pix {
		out[i] = v > t
	}
	return out
}

// Threshold returns a new mask with 1 where the value is above t and 0 elsewhere.
func (m *Mask) Threshold(t float32) *Mask {
	out := New(m.Width, m.Height)
	for i, v := range m.Pix {
		if v > t {
			out.Pix[i] = 1
		}
	}
	return out
}

// Invert returns 1-m.
func (m *Mask) Invert() *Mask {
	out := New(m.Width, m.Height)
	for i, v := range m.Pix {
		out.Pix[i] = 1 - clip01(v)
	}
	return out
}

// FromBools builds a binary mask from a boolean plane.
func FromBools(b []bool, width, height int) *Mask {
	out := New(width, height)
	for i, v := range b {
		if v {
			out.Pix[i] = 1
		}
	}
	return out
}

// FromAlpha extracts the alpha channel of img as a mask.
func FromAlpha(img image.Image) *Mask {
	b := img.Bounds()
	out := New(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			_, _, _, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Pix[y*out.Width+x] = float32(a) / 0xffff
		}
	}
	return out
}

// FromGray converts a single-channel image into a mask.
func FromGray(img *image.Gray) *Mask {
	b := img.Bounds()
	out := New(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		row := img.Pix[(y)*img.Stride : (y)*img.Stride+out.Width]
		for x, v := range row {
			out.Pix[y*out.Width+x] = float32(v) / 255
		}
	}
	return out
}

// Grayscale returns the luma plane of img scaled into [0, 1].
// The weights follow ITU-R BT.601 like most image toolkits.
func Grayscale(img image.Image) *Mask {
	b := img.Bounds()
	out := New(b.Dx(), b.Dy())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(bl)
			out.Pix[y*out.Width+x] = float32(lum / 0xffff)
		}
	}
	return out
}

// ToGray renders the mask as an 8-bit gray image.
func (m *Mask) ToGray() *image.Gray {
	img := image.NewGray(m.Bounds())
	for i, v := range m.Pix {
		img.Pix[i] = ToByte(v)
	}
	return img
}

// Resize scales the mask to width x height with Lanczos resampling.
func (m *Mask) Resize(width, height int) *Mask {
	if width == m.Width && height == m.Height {
		return m.Clone()
	}
	if width <= 0 || height <= 0 {
		return New(width, height)
	}
	resized := imaging.Resize(m.ToGray(), width, height, imaging.Lanczos)
	out := New(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Pix[y*width+x] = float32(resized.Pix[y*resized.Stride+x*4]) / 255
		}
	}
	return out
}

// ApplyAlpha returns a copy of img as RGBA with m used as its alpha channel.
// Colors are premultiplied by the new alpha.
func ApplyAlpha(img image.Image, m *Mask) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Dx() != m.Width || b.Dy() != m.Height {
		return nil, fmt.Errorf("%w: image %dx%d, mask %dx%d", ErrSizeMismatch, b.Dx(), b.Dy(), m.Width, m.Height)
	}
	out := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			c.A = ToByte(m.Pix[y*m.Width+x])
			out.Set(x, y, c)
		}
	}
	return out, nil
}

// ToByte converts a confidence to an 8-bit level with rounding.
func ToByte(v float32) uint8 {
	return uint8(clip01(v)*255 + 0.5)
}

func clip01(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
