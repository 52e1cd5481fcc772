package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/cutout/internal/mempool"
	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ToRGBA returns img as a zero-origin *image.RGBA. An RGBA input with a zero
// origin is still copied so callers own the result.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// FitScale returns the factor that brings the longer side down to maxDim.
// It is 1 when the image already fits or maxDim is not positive.
func FitScale(width, height, maxDim int) float64 {
	longest := max(width, height)
	if maxDim <= 0 || longest <= maxDim {
		return 1
	}
	return float64(maxDim) / float64(longest)
}

// SmartResize downscales img with Lanczos so its longer side is at most
// maxDim, preserving aspect ratio. It never upscales.
func SmartResize(img image.Image, maxDim int) (image.Image, bool, error) {
	if img == nil {
		return nil, false, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	scale := FitScale(b.Dx(), b.Dy(), maxDim)
	if scale == 1 {
		return img, false, nil
	}
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))
	return imaging.Resize(img, w, h, imaging.Lanczos), true, nil
}

// ResizeExact resamples img to width x height with Lanczos.
func ResizeExact(img image.Image, width, height int) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if width <= 0 || height <= 0 {
		return nil, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid target dimensions: %dx%d", width, height),
		}
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// NormalizeImagePooled converts img to an NCHW float tensor of shape
// [1, 3, H, W] with per-channel (v/max - mean) / std, dividing by the image's
// maximum channel value like the u2net family expects. The buffer comes from
// mempool and should be returned with mempool.PutFloat32.
func NormalizeImagePooled(img image.Image, mean, std [3]float32) ([]float32, int, int, error) {
	if img == nil {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("input image is nil")}
	}
	for _, s := range std {
		if s == 0 {
			return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("zero std")}
		}
	}

	nrgba := imaging.Clone(img)
	width, height := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	if width <= 0 || height <= 0 {
		return nil, 0, 0, &ImageProcessingError{Operation: "normalize", Err: errors.New("invalid image dimensions")}
	}

	peak := uint8(0)
	for i := 0; i < len(nrgba.Pix); i += 4 {
		peak = max(peak, nrgba.Pix[i], nrgba.Pix[i+1], nrgba.Pix[i+2])
	}
	scale := float32(1)
	if peak > 0 {
		scale = float32(peak)
	}

	plane := width * height
	tensor := mempool.GetFloat32(3 * plane)
	for y := range height {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := range width {
			idx := y*width + x
			for c := range 3 {
				v := float32(row[x*4+c]) / scale
				tensor[c*plane+idx] = (v - mean[c]) / std[c]
			}
		}
	}
	return tensor, width, height, nil
}
