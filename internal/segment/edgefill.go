package segment

import (
	"context"
	"image"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

// EdgeScale is one Canny pass over a pre-blurred image.
type EdgeScale struct {
	Sigma     float64
	Low, High float64
}

// DefaultEdgeScales go from fine detail to strong outlines.
var DefaultEdgeScales = []EdgeScale{
	{Sigma: 0.8, Low: 30, High: 100},
	{Sigma: 1.4, Low: 50, High: 150},
	{Sigma: 2.0, Low: 100, High: 200},
}

// MinRegionFraction is the smallest filled region kept, as a fraction of the image.
const MinRegionFraction = 0.01

// EdgeFill unions edges from several scales, closes gaps and fills the
// enclosed regions.
type EdgeFill struct {
	Scales []EdgeScale
}

// NewEdgeFill uses DefaultEdgeScales.
func NewEdgeFill() *EdgeFill { return &EdgeFill{Scales: DefaultEdgeScales} }

// Name implements Backend.
func (*EdgeFill) Name() string { return "edge_fill" }

// Segment implements Backend.
func (e *EdgeFill) Segment(ctx context.Context, img image.Image) (*Result, error) {
	if err := checkInput(img); err != nil {
		return nil, err
	}
	gray := mask.Grayscale(img)
	w, h := gray.Width, gray.Height

	planes := make([][]bool, 0, len(e.Scales))
	for _, s := range e.Scales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src := gray
		if s.Sigma > 0 {
			src = mask.GaussianBlur(gray, s.Sigma)
		}
		planes = append(planes, mask.Canny(src, s.Low, s.High))
	}

	edges := mask.FromBools(mask.Union(planes...), w, h)
	edges = mask.Close(edges, 3, 2)
	edges = mask.Dilate(edges, 3)

	filled := mask.FillHoles(edges.Binary(0.5), w, h)
	minArea := int(MinRegionFraction * float64(w*h))
	kept := mask.KeepComponents(filled, w, h, func(c mask.Component) bool {
		return c.Area > minArea
	})
	if mask.Count(kept) == 0 {
		return nil, ErrNoResult
	}
	return &Result{Mask: mask.FromBools(kept, w, h), Backend: e.Name()}, nil
}
