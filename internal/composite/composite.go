// Package composite builds the final cut-out and places it over the
// requested background.
package composite

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// ErrInvalidColor is returned for unparsable background colors.
var ErrInvalidColor = errors.New("invalid background color")

// Mode is the background treatment.
type Mode int

const (
	ModeRemove Mode = iota
	ModeColor
	ModeImage
)

// ParseMode accepts remove, transparent, color and image.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "remove", "transparent":
		return ModeRemove, nil
	case "color", "colour":
		return ModeColor, nil
	case "image":
		return ModeImage, nil
	default:
		return ModeRemove, fmt.Errorf("unknown background mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeColor:
		return "color"
	case ModeImage:
		return "image"
	default:
		return "remove"
	}
}

// aspectTolerance is the aspect ratio difference above which a background
// image is cover-cropped instead of stretched.
const aspectTolerance = 0.1

// Background describes what goes behind the subject.
type Background struct {
	Mode  Mode
	Color string
	// ImagePath is loaded when Image is nil.
	ImagePath string
	Image     image.Image
}

// ParseColor parses #RGB or #RRGGBB, with or without the leading '#'.
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.NRGBA{}, fmt.Errorf("%w: empty", ErrInvalidColor)
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Cutout applies m as the alpha of src. With binary set, alpha is forced
// to 0 or 255 at the 128 threshold.
func Cutout(src image.Image, m *mask.Mask, binary bool) (*image.RGBA, error) {
	if binary {
		m = m.Threshold(mask.StrongForeground)
	}
	return mask.ApplyAlpha(src, m)
}

// Compose places cutout over bg. Background images that cannot be loaded
// degrade to a transparent result; invalid colors are an error.
func Compose(cutout image.Image, bg Background) (*image.RGBA, error) {
	b := cutout.Bounds()
	switch bg.Mode {
	case ModeColor:
		c, err := ParseColor(bg.Color)
		if err != nil {
			return nil, err
		}
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
		draw.Draw(dst, dst.Bounds(), cutout, b.Min, draw.Over)
		return dst, nil

	case ModeImage:
		back, err := loadBackground(bg)
		if err != nil {
			slog.Warn("background image unavailable, keeping transparency", "path", bg.ImagePath, "error", err)
			return utils.ToRGBA(cutout), nil
		}
		dst := utils.ToRGBA(FitBackground(back, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), cutout, b.Min, draw.Over)
		return dst, nil

	default:
		return utils.ToRGBA(cutout), nil
	}
}

func loadBackground(bg Background) (image.Image, error) {
	if bg.Image != nil {
		if bg.Image.Bounds().Empty() {
			return nil, errors.New("empty background image")
		}
		return bg.Image, nil
	}
	img, _, err := utils.LoadImage(bg.ImagePath)
	return img, err
}

// FitBackground resizes img to width x height with Lanczos. When the aspect
// ratios differ by 0.1 or more it scales to cover and crops the centre.
func FitBackground(img image.Image, width, height int) image.Image {
	ib := img.Bounds()
	src := float64(ib.Dx()) / float64(ib.Dy())
	dst := float64(width) / float64(height)
	if math.Abs(src-dst) >= aspectTolerance {
		return imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}
