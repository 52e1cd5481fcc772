// Package testutil generates synthetic photographs for tests: flat studio
// backgrounds with simple subjects, high-edge patterns and noise.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	TinySize   = ImageSize{32, 32}
	SmallSize  = ImageSize{160, 120}
	MediumSize = ImageSize{400, 400}
)

// Solid returns an image filled with c.
func Solid(size ImageSize, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// Disc draws a filled disc of radius r (fraction of the shorter side) centered
// on a flat background. This is the canonical "product on a studio backdrop" scene.
func Disc(size ImageSize, bg, fg color.Color, r float64) *image.RGBA {
	img := Solid(size, bg)
	cx, cy := float64(size.Width)/2, float64(size.Height)/2
	rad := r * math.Min(float64(size.Width), float64(size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= rad*rad {
				img.Set(x, y, fg)
			}
		}
	}
	return img
}

// DiscMask returns the ground-truth alpha of Disc as a gray image.
func DiscMask(size ImageSize, r float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	cx, cy := float64(size.Width)/2, float64(size.Height)/2
	rad := r * math.Min(float64(size.Width), float64(size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			if dx*dx+dy*dy <= rad*rad {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// Stripes returns alternating black and white vertical bars of the given
// period, a scene with very high edge density.
func Stripes(size ImageSize, period int) *image.RGBA {
	if period < 2 {
		period = 2
	}
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			if (x/(period/2))%2 == 0 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

// Checker returns a two-color checkerboard with square cells of side cell.
func Checker(size ImageSize, cell int, a, b color.Color) *image.RGBA {
	if cell < 1 {
		cell = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.Set(x, y, a)
			} else {
				img.Set(x, y, b)
			}
		}
	}
	return img
}

// Noise returns uniformly random RGB noise from a fixed seed.
func Noise(size ImageSize, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test data
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = uint8(rng.Intn(256))
		img.Pix[i+1] = uint8(rng.Intn(256))
		img.Pix[i+2] = uint8(rng.Intn(256))
		img.Pix[i+3] = 255
	}
	return img
}

// SaveImage writes img as PNG to path, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	file, err := os.Create(path) //nolint:gosec // G304: test path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()
	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// WriteTempImage saves img into a fresh temp dir and returns the path.
func WriteTempImage(t *testing.T, img image.Image, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	SaveImage(t, img, path)
	return path
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: test path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")
	return img
}

// AlphaRatio returns the fraction of pixels whose alpha exceeds 128.
func AlphaRatio(img image.Image) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a>>8 > 128 {
				n++
			}
		}
	}
	return float64(n) / float64(b.Dx()*b.Dy())
}

// IoU compares the >128 alpha region of img against a ground-truth gray mask.
func IoU(img image.Image, truth *image.Gray) float64 {
	b := img.Bounds()
	var inter, union int
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			_, _, _, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			p := a>>8 > 128
			q := truth.GrayAt(x, y).Y > 128
			if p && q {
				inter++
			}
			if p || q {
				union++
			}
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}
