// Package analysis inspects input images before segmentation: structural
// complexity metrics drive backend selection, and quality metrics drive the
// optional pre-segmentation enhancement.
package analysis

import (
	"image"

	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

// Thresholds above which an image counts as complex.
const (
	EdgeDensityThreshold   = 0.1
	ColorVarianceThreshold = 1000.0
	TextureEnergyThreshold = 500.0

	// CornerPatchSize is the side of the square sampled in each image corner.
	CornerPatchSize = 50

	cannyLow  = 50
	cannyHigh = 150
)

// ComplexityMetrics describes the structure of an image.
type ComplexityMetrics struct {
	EdgeDensity    float64 `json:"edge_density"`
	ColorVariance  float64 `json:"color_variance"`
	TextureEnergy  float64 `json:"texture_energy"`
	CornerVariance float64 `json:"corner_variance"`
	IsComplex      bool    `json:"is_complex"`
}

// AnalyzeComplexity computes ComplexityMetrics. It never fails; empty images
// yield zero metrics.
func AnalyzeComplexity(img image.Image) ComplexityMetrics {
	if img == nil || img.Bounds().Empty() {
		return ComplexityMetrics{}
	}
	gray := mask.Grayscale(img)

	m := ComplexityMetrics{
		EdgeDensity:    mask.EdgeDensity(mask.Canny(gray, cannyLow, cannyHigh)),
		ColorVariance:  colorVariance(img),
		TextureEnergy:  textureEnergy(gray),
		CornerVariance: cornerVariance(gray),
	}
	m.IsComplex = m.EdgeDensity > EdgeDensityThreshold ||
		m.ColorVariance > ColorVarianceThreshold ||
		m.TextureEnergy > TextureEnergyThreshold
	return m
}

// colorVariance is the mean of the per-channel population variances on the 0..255 scale.
func colorVariance(img image.Image) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	ch := [3][]float64{make([]float64, 0, n), make([]float64, 0, n), make([]float64, 0, n)}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			ch[0] = append(ch[0], float64(r>>8))
			ch[1] = append(ch[1], float64(g>>8))
			ch[2] = append(ch[2], float64(bl>>8))
		}
	}
	var sum float64
	for _, c := range ch {
		sum += stat.PopVariance(c, nil)
	}
	return sum / 3
}

// textureEnergy is the variance of the Laplacian response on the 0..255 scale.
func textureEnergy(gray *mask.Mask) float64 {
	lap := mask.Laplacian(gray)
	vals := make([]float64, len(lap))
	for i, v := range lap {
		vals[i] = float64(v) * 255
	}
	return stat.PopVariance(vals, nil)
}

// cornerVariance is the variance of the mean brightness of the four corner
// patches. Patches shrink on images smaller than twice CornerPatchSize.
func cornerVariance(gray *mask.Mask) float64 {
	p := min(CornerPatchSize, max(1, gray.Width/2), max(1, gray.Height/2))
	origins := [4][2]int{
		{0, 0},
		{gray.Width - p, 0},
		{0, gray.Height - p},
		{gray.Width - p, gray.Height - p},
	}
	means := make([]float64, 0, 4)
	for _, o := range origins {
		means = append(means, patchMean(gray, o[0], o[1], p)*255)
	}
	return stat.PopVariance(means, nil)
}

func patchMean(gray *mask.Mask, x0, y0, p int) float64 {
	var sum float64
	n := 0
	for y := max(0, y0); y < min(gray.Height, y0+p); y++ {
		for x := max(0, x0); x < min(gray.Width, x0+p); x++ {
			sum += float64(gray.Pix[y*gray.Width+x])
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// CornerMeans returns the mean gray level (0..1) of the four corner patches
// in the order top-left, top-right, bottom-left, bottom-right.
func CornerMeans(gray *mask.Mask) [4]float64 {
	p := min(CornerPatchSize, max(1, gray.Width/2), max(1, gray.Height/2))
	return [4]float64{
		patchMean(gray, 0, 0, p),
		patchMean(gray, gray.Width-p, 0, p),
		patchMean(gray, 0, gray.Height-p, p),
		patchMean(gray, gray.Width-p, gray.Height-p, p),
	}
}
