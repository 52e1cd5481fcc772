//go:build gocv

package segment

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// OpenCVCut runs OpenCV GrabCut seeded by SeedRect: five rectangle
// iterations followed by three mask iterations.
type OpenCVCut struct{}

// Name implements Backend.
func (OpenCVCut) Name() string { return "grabcut" }

// Segment implements Backend.
func (o OpenCVCut) Segment(ctx context.Context, img image.Image) (*Result, error) {
	if err := checkInput(img); err != nil {
		return nil, err
	}
	rgba := utils.ToRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()

	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return nil, fmt.Errorf("grabcut input: %w", err)
	}
	defer src.Close()
	bgr := gocv.NewMat()
	defer bgr.Close()
	if err := gocv.CvtColor(src, &bgr, gocv.ColorRGBAToBGR); err != nil {
		return nil, fmt.Errorf("grabcut: %w", err)
	}

	labels := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	defer labels.Close()
	bgModel := gocv.NewMat()
	defer bgModel.Close()
	fgModel := gocv.NewMat()
	defer fgModel.Close()

	rect := SeedRect(mask.Grayscale(rgba))
	if err := gocv.GrabCut(bgr, &labels, rect, &bgModel, &fgModel, 5, gocv.GCInitWithRect); err != nil {
		return nil, fmt.Errorf("grabcut: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := gocv.GrabCut(bgr, &labels, rect, &bgModel, &fgModel, 3, gocv.GCInitWithMask); err != nil {
		return nil, fmt.Errorf("grabcut: %w", err)
	}

	final := make([]uint8, w*h)
	bins := make([]int, w*h)
	out := mask.New(w, h)
	for y := range h {
		for x := range w {
			i := y*w + x
			p := rgba.Pix[i*4 : i*4+3]
			bins[i] = binOf(p[0], p[1], p[2])
			final[i] = labels.GetUCharAt(y, x)
			if final[i] == labelFG || final[i] == labelProbFG {
				out.Pix[i] = 1
			}
		}
	}
	if separation(final, bins) < minSeparation {
		return nil, ErrNoResult
	}
	return &Result{Mask: out, Backend: o.Name()}, nil
}

func cutBackend() Backend { return OpenCVCut{} }
