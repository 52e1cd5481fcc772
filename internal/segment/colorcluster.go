package segment

import (
	"context"
	"image"
	"log/slog"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// ColorCluster runs k-means in CIE Lab and treats the cluster that dominates
// the image border as background. Images with fewer distinct colors than K
// use fewer clusters; single-color images fall back to an adaptive threshold.
type ColorCluster struct {
	K          int
	Iterations int
	MaxSamples int
}

// NewColorCluster returns a three-cluster segmenter.
func NewColorCluster() *ColorCluster {
	return &ColorCluster{K: 3, Iterations: 10, MaxSamples: 20000}
}

// Name implements Backend.
func (*ColorCluster) Name() string { return "color_cluster" }

type lab [3]float64

func (a lab) dist2(b lab) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}

// Segment implements Backend.
func (c *ColorCluster) Segment(ctx context.Context, img image.Image) (*Result, error) {
	if err := checkInput(img); err != nil {
		return nil, err
	}
	rgba := utils.ToRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()

	pixels := toLab(rgba)
	centers, ok := c.fit(ctx, pixels)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		slog.Debug("color clustering degenerate, using adaptive threshold")
		return &Result{Mask: adaptiveFallback(rgba), Backend: c.Name()}, nil
	}

	assign := make([]int, len(pixels))
	for i, p := range pixels {
		assign[i] = nearest(centers, p)
	}

	votes := make([]int, len(centers))
	for x := range w {
		votes[assign[x]]++
		votes[assign[(h-1)*w+x]]++
	}
	for y := range h {
		votes[assign[y*w]]++
		votes[assign[y*w+w-1]]++
	}
	bgCluster := 0
	for k, v := range votes {
		if v > votes[bgCluster] {
			bgCluster = k
		}
	}

	out := mask.New(w, h)
	for i, a := range assign {
		if a != bgCluster {
			out.Pix[i] = 1
		}
	}
	return &Result{Mask: out, Backend: c.Name()}, nil
}

// toLab converts each pixel once per distinct color.
func toLab(img *image.RGBA) []lab {
	n := img.Rect.Dx() * img.Rect.Dy()
	out := make([]lab, n)
	cache := make(map[uint32]lab)
	for i := range n {
		p := img.Pix[i*4 : i*4+3]
		key := uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
		v, ok := cache[key]
		if !ok {
			l, a, b := colorful.Color{R: float64(p[0]) / 255, G: float64(p[1]) / 255, B: float64(p[2]) / 255}.Lab()
			v = lab{l, a, b}
			cache[key] = v
		}
		out[i] = v
	}
	return out
}

// fit runs Lloyd iterations on an evenly strided sample, seeded by
// farthest-point selection so results are deterministic.
func (c *ColorCluster) fit(ctx context.Context, pixels []lab) ([]lab, bool) {
	k := max(2, c.K)
	stride := max(1, len(pixels)/max(1, c.MaxSamples))
	samples := make([]lab, 0, len(pixels)/stride+1)
	for i := 0; i < len(pixels); i += stride {
		samples = append(samples, pixels[i])
	}

	centers := []lab{samples[0]}
	for len(centers) < k {
		far, farDist := -1, 0.0
		for i, s := range samples {
			d := s.dist2(centers[nearest(centers, s)])
			if d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 || farDist < 1 {
			break
		}
		centers = append(centers, samples[far])
	}
	if len(centers) < 2 {
		return nil, false
	}
	k = len(centers)

	for range max(1, c.Iterations) {
		if ctx.Err() != nil {
			return nil, false
		}
		sums := make([]lab, k)
		counts := make([]int, k)
		for _, s := range samples {
			j := nearest(centers, s)
			for d := range 3 {
				sums[j][d] += s[d]
			}
			counts[j]++
		}
		moved := 0.0
		for j := range centers {
			if counts[j] == 0 {
				continue
			}
			next := lab{sums[j][0] / float64(counts[j]), sums[j][1] / float64(counts[j]), sums[j][2] / float64(counts[j])}
			moved = math.Max(moved, next.dist2(centers[j]))
			centers[j] = next
		}
		if moved < 1e-8 {
			break
		}
	}
	return centers, true
}

func nearest(centers []lab, p lab) int {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centers {
		if d := p.dist2(c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func adaptiveFallback(img *image.RGBA) *mask.Mask {
	return mask.AdaptiveThreshold(mask.Grayscale(img), 11, 2.0/255)
}
