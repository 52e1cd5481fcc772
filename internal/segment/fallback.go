package segment

import (
	"context"
	"image"

	"github.com/MeKo-Tech/cutout/internal/analysis"
	"github.com/MeKo-Tech/cutout/internal/mask"
)

// Threshold is the last-resort backend: a global Otsu threshold followed by
// a morphological close. Foreground is whichever side of the threshold the
// image corners are not on. It only fails on empty input.
type Threshold struct{}

// Name implements Backend.
func (Threshold) Name() string { return "threshold" }

// Segment implements Backend.
func (t Threshold) Segment(_ context.Context, img image.Image) (*Result, error) {
	if err := checkInput(img); err != nil {
		return nil, err
	}
	gray := mask.Grayscale(img)
	thr := mask.OtsuThreshold(gray)

	corners := analysis.CornerMeans(gray)
	bgMean := (corners[0] + corners[1] + corners[2] + corners[3]) / 4
	darkSubject := bgMean > float64(thr)

	out := mask.New(gray.Width, gray.Height)
	for i, v := range gray.Pix {
		if (v > thr) != darkSubject {
			out.Pix[i] = 1
		}
	}
	out = mask.Close(out, 5, 1)
	return &Result{Mask: out, Backend: t.Name()}, nil
}
