package enhance

import (
	"math"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

// reinforceBoost is the maximum additive boost on edges, 50 of 255 levels.
const reinforceBoost = 50.0 / 255.0

// EdgeGuidedSmooth blends the mask with a blurred copy, keeping the sharp
// version near source-image edges: out = m*e + blur(m)*(1-e), where e is the
// Canny edge map of gray softened by a 5x5 Gaussian.
func EdgeGuidedSmooth(m, gray *mask.Mask, radius float64) (*mask.Mask, error) {
	if !m.SameSize(gray) {
		return nil, mask.ErrSizeMismatch
	}
	edges := mask.FromBools(mask.Canny(gray, 50, 150), gray.Width, gray.Height)
	strength := mask.GaussianBlurSize(edges, 5, 1.0)
	return mask.Lerp(mask.GaussianBlur(m, radius), m, strength)
}

// Unsharp sharpens the alpha: m + s*(m - blur(m, 1)), clipped.
func Unsharp(m *mask.Mask, strength float64) *mask.Mask {
	blurred := mask.GaussianBlur(m, 1.0)
	out := mask.New(m.Width, m.Height)
	s := float32(strength)
	for i, v := range m.Pix {
		out.Pix[i] = v + s*(v-blurred.Pix[i])
	}
	return out.Clip()
}

// ReinforceEdges boosts the mask on the dilated union of mask edges and
// source edges by weight*50/255, clipped.
func ReinforceEdges(m, gray *mask.Mask, weight float64) (*mask.Mask, error) {
	if !m.SameSize(gray) {
		return nil, mask.ErrSizeMismatch
	}
	union := mask.Union(mask.Canny(m, 50, 150), mask.Canny(gray, 30, 100))
	edges := mask.DilateBools(union, m.Width, m.Height, 3)
	boost := float32(weight * reinforceBoost)
	out := m.Clone()
	for i, e := range edges {
		if e {
			out.Pix[i] += boost
		}
	}
	return out.Clip(), nil
}

// AntiAlias applies a 3x3, sigma 0.5 Gaussian.
func AntiAlias(m *mask.Mask) *mask.Mask {
	return mask.GaussianBlurSize(m, 3, 0.5).Clip()
}

// Hair detection parameters.
var hairSigmas = []float64{0.5, 1.0, 1.5}

const (
	hairSigmaRatio = 1.6
	hairThreshold  = 30.0 / 255.0
)

// HairRegions flags fine filamentary structure in gray using a three-scale
// difference of Gaussians normalized to its maximum.
func HairRegions(gray *mask.Mask) []bool {
	response := make([]float32, len(gray.Pix))
	for _, s := range hairSigmas {
		g1 := mask.GaussianBlur(gray, s)
		g2 := mask.GaussianBlur(gray, s*hairSigmaRatio)
		for i := range response {
			response[i] += float32(math.Abs(float64(g1.Pix[i] - g2.Pix[i])))
		}
	}
	peak := float32(0)
	for _, v := range response {
		peak = max(peak, v)
	}
	out := make([]bool, len(response))
	if peak <= 0 {
		return out
	}
	for i, v := range response {
		out[i] = v/peak > hairThreshold
	}
	return out
}

// RefineHair replaces the mask with a softer 3x3 blur inside hair regions.
func RefineHair(m, gray *mask.Mask) (*mask.Mask, error) {
	if !m.SameSize(gray) {
		return nil, mask.ErrSizeMismatch
	}
	soft := mask.GaussianBlurSize(m, 3, 0.5)
	out := m.Clone()
	for i, hair := range HairRegions(gray) {
		if hair {
			out.Pix[i] = soft.Pix[i]
		}
	}
	return out.Clip(), nil
}

// Feather blurs the alpha with a Gaussian of the given radius. Radius 0 is a copy.
func Feather(m *mask.Mask, radius float64) *mask.Mask {
	if radius <= 0 || math.IsNaN(radius) {
		return m.Clone()
	}
	return mask.GaussianBlur(m, radius).Clip()
}
