package segment

import (
	"context"
	"image"
	"math"

	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// Pixel labels, numbered like OpenCV's GrabCut mask values.
const (
	labelBG uint8 = iota
	labelFG
	labelProbBG
	labelProbFG
)

const (
	histBins    = 16 // per channel
	rectPadding = 20
	smoothness  = 0.2
	pseudoCount = 0.1
	// minSeparation is the smallest total variation distance between the
	// final foreground and background color distributions.
	minSeparation = 0.2
)

// RegionCut is an iterative color-model cut seeded by a rectangle. Pixels
// outside the rectangle are fixed background; pixels inside are relabeled
// each round from foreground and background color histograms plus a
// neighbour agreement term.
type RegionCut struct {
	InitIterations   int
	RefineIterations int
}

// NewRegionCut returns the default 5 + 3 iteration cut.
func NewRegionCut() *RegionCut {
	return &RegionCut{InitIterations: 5, RefineIterations: 3}
}

// Name implements Backend.
func (*RegionCut) Name() string { return "region_cut" }

// Segment implements Backend.
func (r *RegionCut) Segment(ctx context.Context, img image.Image) (*Result, error) {
	if err := checkInput(img); err != nil {
		return nil, err
	}
	rgba := utils.ToRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	rect := SeedRect(mask.Grayscale(rgba))

	labels := make([]uint8, w*h)
	for y := range h {
		for x := range w {
			if image.Pt(x, y).In(rect) {
				labels[y*w+x] = labelProbFG
			}
		}
	}

	bins := make([]int, w*h)
	for i := range bins {
		p := rgba.Pix[i*4 : i*4+3]
		bins[i] = binOf(p[0], p[1], p[2])
	}

	total := r.InitIterations + r.RefineIterations
	for it := 0; it < total; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fg, bg, ok := histograms(labels, bins)
		if !ok {
			return nil, ErrNoResult
		}
		if relabel(labels, bins, fg, bg, w, h) == 0 {
			break
		}
	}

	if separation(labels, bins) < minSeparation {
		return nil, ErrNoResult
	}

	out := mask.New(w, h)
	for i, l := range labels {
		if l == labelFG || l == labelProbFG {
			out.Pix[i] = 1
		}
	}
	return &Result{Mask: out, Backend: r.Name()}, nil
}

func binOf(r, g, b uint8) int {
	const shift = 4 // 256 / histBins
	return int(r>>shift)*histBins*histBins + int(g>>shift)*histBins + int(b>>shift)
}

// histograms builds smoothed log color likelihoods for both classes.
func histograms(labels []uint8, bins []int) (fg, bg []float64, ok bool) {
	n := histBins * histBins * histBins
	fc := make([]float64, n)
	bc := make([]float64, n)
	var nf, nb float64
	for i, l := range labels {
		if l == labelFG || l == labelProbFG {
			fc[bins[i]]++
			nf++
		} else {
			bc[bins[i]]++
			nb++
		}
	}
	if nf == 0 || nb == 0 {
		return nil, nil, false
	}
	for i := range fc {
		fc[i] = math.Log((fc[i] + pseudoCount) / (nf + pseudoCount*float64(n)))
		bc[i] = math.Log((bc[i] + pseudoCount) / (nb + pseudoCount*float64(n)))
	}
	return fc, bc, true
}

// separation is the total variation distance between the foreground and
// background color distributions, 0 for identical and 1 for disjoint.
func separation(labels []uint8, bins []int) float64 {
	n := histBins * histBins * histBins
	fc := make([]float64, n)
	bc := make([]float64, n)
	var nf, nb float64
	for i, l := range labels {
		if l == labelFG || l == labelProbFG {
			fc[bins[i]]++
			nf++
		} else {
			bc[bins[i]]++
			nb++
		}
	}
	if nf == 0 || nb == 0 {
		return 0
	}
	var tv float64
	for i := range fc {
		tv += math.Abs(fc[i]/nf - bc[i]/nb)
	}
	return tv / 2
}

// relabel updates probable labels and returns how many changed.
func relabel(labels []uint8, bins []int, fg, bg []float64, w, h int) int {
	prev := append([]uint8(nil), labels...)
	changed := 0
	for y := range h {
		for x := range w {
			i := y*w + x
			if prev[i] == labelBG || prev[i] == labelFG {
				continue
			}
			agree := 0
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					n++
					if l := prev[ny*w+nx]; l == labelFG || l == labelProbFG {
						agree++
					} else {
						agree--
					}
				}
			}
			score := fg[bins[i]] - bg[bins[i]] + smoothness*float64(agree)/float64(max(n, 1))
			next := labelProbBG
			if score > 0 {
				next = labelProbFG
			}
			if next != prev[i] {
				labels[i] = next
				changed++
			}
		}
	}
	return changed
}

// SeedRect is the bounding box of the largest edge structure padded by 20
// pixels, or a centred rectangle with a margin of a tenth of the short side
// when no edges are found. It always leaves a background border.
func SeedRect(gray *mask.Mask) image.Rectangle {
	w, h := gray.Width, gray.Height
	bounds := image.Rect(0, 0, w, h)

	edges := mask.Canny(gray, 50, 150)
	comps, _ := mask.ConnectedComponents(edges, w, h)
	var best image.Rectangle
	for _, c := range comps {
		r := c.Rect()
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}

	rect := best.Inset(-rectPadding).Intersect(bounds)
	if best.Empty() || rect.Eq(bounds) {
		margin := max(1, min(w, h)/10)
		rect = bounds.Inset(margin)
	}
	if rect.Empty() {
		rect = bounds
	}
	return rect
}
