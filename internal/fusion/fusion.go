// Package fusion combines several segmentation masks into one.
package fusion

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

// ErrNoCandidates is returned when there is nothing to fuse.
var ErrNoCandidates = errors.New("no candidates to fuse")

// Candidate is a validated mask and its backend confidence.
type Candidate struct {
	Backend string
	Mask    *mask.Mask
	Weight  float64
}

// Fuse blends candidates by normalized weight, then inside the dilated union
// of every candidate's edges replaces the blend with the pixel-wise maximum.
// Zero-weight candidates still contribute to that maximum.
func Fuse(cands []Candidate) (*mask.Mask, error) {
	if len(cands) == 0 {
		return nil, ErrNoCandidates
	}
	first := cands[0].Mask
	if err := first.Check(); err != nil {
		return nil, err
	}
	masks := make([]*mask.Mask, len(cands))
	for i, c := range cands {
		if !first.SameSize(c.Mask) {
			return nil, fmt.Errorf("%w: candidate %s", mask.ErrSizeMismatch, c.Backend)
		}
		masks[i] = c.Mask
	}
	weights := normalize(cands)

	w, h := first.Width, first.Height
	base := mask.New(w, h)
	for i, c := range cands {
		wt := float32(weights[i])
		for p, v := range c.Mask.Pix {
			base.Pix[p] += wt * v
		}
	}

	planes := make([][]bool, len(cands))
	for i, c := range cands {
		planes[i] = mask.Canny(c.Mask, 50, 150)
	}
	edges := mask.DilateBools(mask.Union(planes...), w, h, 3)

	peak, err := mask.Max(masks...)
	if err != nil {
		return nil, err
	}
	for p, e := range edges {
		if e {
			base.Pix[p] = peak.Pix[p]
		}
	}
	return base.Clip(), nil
}

// normalize scales weights to sum to one, using equal weights when the sum
// is not positive.
func normalize(cands []Candidate) []float64 {
	out := make([]float64, len(cands))
	sum := 0.0
	for _, c := range cands {
		sum += max(0, c.Weight)
	}
	for i, c := range cands {
		if sum > 0 {
			out[i] = max(0, c.Weight) / sum
		} else {
			out[i] = 1 / float64(len(cands))
		}
	}
	return out
}

// Best returns the highest-weighted candidate; earlier entries win ties.
func Best(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Weight > best.Weight {
			best = c
		}
	}
	return best, true
}

// FuseOrBest fuses cands and, when fusion fails, falls back to the single
// highest-weighted candidate. The returned label names the source.
func FuseOrBest(cands []Candidate) (*mask.Mask, string, error) {
	fused, err := Fuse(cands)
	if err == nil {
		return fused, "ensemble", nil
	}
	best, ok := Best(cands)
	if !ok || best.Mask.Check() != nil {
		return nil, "", err
	}
	slog.Warn("fusion failed, using best candidate", "backend", best.Backend, "error", err)
	return best.Mask.Clone(), best.Backend, nil
}
