package pipeline

import (
	"image"
	"math"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

const (
	holeDarkLevel    = 50.0 / 255.0
	holeCloseSize    = 15
	holeMinFraction  = 0.0005
	holeMaxFraction  = 0.10
	sparseRatio      = 0.1
	denseRatio       = 0.9
	maxComponents    = 10
	minComponentPart = 0.01
	maxRoughness     = 0.3
)

// PreserveHoles clears enclosed background inside the subject: dark pixels
// surrounded by foreground and topological holes that a 15x15 closing would
// fill. Only hole components between 0.05% and 10% of the image are cleared.
func PreserveHoles(m, gray *mask.Mask) *mask.Mask {
	if m == nil || gray == nil || !m.SameSize(gray) {
		return m
	}
	w, h := m.Width, m.Height
	fg := m.Binary(mask.StrongForeground)
	comps, _ := mask.ConnectedComponents(fg, w, h)
	if len(comps) == 0 {
		return m
	}
	box := image.Rectangle{}
	for _, c := range comps {
		box = box.Union(c.Rect())
	}

	filled := mask.FillHoles(fg, w, h)
	closed := mask.Close(mask.FromBools(fg, w, h), holeCloseSize, 1).Binary(0.5)

	cand := make([]bool, len(fg))
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			i := y*w + x
			enclosedDark := fg[i] && gray.Pix[i] < holeDarkLevel && filled[i]
			gap := !fg[i] && closed[i]
			enclosedGap := !fg[i] && filled[i]
			cand[i] = enclosedDark || gap || enclosedGap
		}
	}

	area := float64(w * h)
	holes := mask.KeepComponents(cand, w, h, func(c mask.Component) bool {
		f := float64(c.Area) / area
		return f >= holeMinFraction && f <= holeMaxFraction && !c.TouchesBorder
	})

	out := m.Clone()
	for i, hole := range holes {
		if hole {
			out.Pix[i] = 0
		}
	}
	return out
}

// QualityCheck nudges an implausible mask back into shape: it grows sparse
// masks, shrinks dense ones, drops speckle when the mask is fragmented and
// smooths rough outlines.
func QualityCheck(m *mask.Mask) *mask.Mask {
	if m == nil || m.Check() != nil || m.IsZero() {
		return m
	}
	out := m
	switch r := out.ForegroundRatio(); {
	case r < sparseRatio:
		out = mask.Dilate(out, 5)
	case r > denseRatio:
		out = mask.Erode(out, 5)
	}

	w, h := out.Width, out.Height
	fg := out.Binary(mask.StrongForeground)
	comps, _ := mask.ConnectedComponents(fg, w, h)
	if len(comps) > maxComponents {
		largest, _ := mask.Largest(comps)
		limit := float64(largest.Area) * minComponentPart
		keep := mask.KeepComponents(fg, w, h, func(c mask.Component) bool {
			return float64(c.Area) >= limit
		})
		trimmed := out.Clone()
		for i, k := range keep {
			if !k {
				trimmed.Pix[i] = 0
			}
		}
		out = trimmed
		fg = keep
	}

	if roughness(out, fg) > maxRoughness {
		out = mask.GaussianBlurSize(out, 3, 0)
	}
	if out == m {
		return m.Clone()
	}
	return out.Clip()
}

// roughness compares the mask's edge pixel count to the perimeter of a disc
// with the same foreground area.
func roughness(m *mask.Mask, fg []bool) float64 {
	area := float64(mask.Count(fg))
	if area == 0 {
		return 0
	}
	edges := float64(mask.Count(mask.Canny(m, 50, 150)))
	perimeter := 2 * math.Sqrt(math.Pi*area)
	return edges/perimeter - 1
}
