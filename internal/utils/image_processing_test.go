package utils

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/cutout/internal/mempool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestImageProcessingErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := &ImageProcessingError{Operation: "resize", Err: base}
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "resize")
}

func TestToRGBAOffsetOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 14, 13))
	src.Set(10, 10, color.RGBA{R: 255, A: 255})
	out := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 4, 3), out.Bounds())
	assert.Equal(t, color.RGBA{R: 255, A: 255}, out.RGBAAt(0, 0))
}

func TestFitScale(t *testing.T) {
	assert.Equal(t, 1.0, FitScale(800, 600, 1024))
	assert.Equal(t, 1.0, FitScale(800, 600, 0))
	assert.InDelta(t, 0.5, FitScale(2048, 1000, 1024), 1e-9)
	assert.InDelta(t, 0.25, FitScale(100, 4096, 1024), 1e-9)
}

func TestSmartResize(t *testing.T) {
	img := solid(2000, 1000, color.White)
	out, resized, err := SmartResize(img, 1000)
	require.NoError(t, err)
	assert.True(t, resized)
	assert.Equal(t, 1000, out.Bounds().Dx())
	assert.Equal(t, 500, out.Bounds().Dy())

	small := solid(100, 50, color.White)
	out, resized, err = SmartResize(small, 1000)
	require.NoError(t, err)
	assert.False(t, resized)
	assert.Same(t, small, out)

	_, _, err = SmartResize(nil, 10)
	assert.Error(t, err)
}

func TestResizeExact(t *testing.T) {
	out, err := ResizeExact(solid(10, 20, color.Black), 32, 16)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 16), out.Bounds())

	_, err = ResizeExact(solid(10, 20, color.Black), 0, 16)
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "resize", ipe.Operation)
}

func TestNormalizeImagePooled(t *testing.T) {
	img := solid(4, 3, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
	mean := [3]float32{0.5, 0.5, 0.5}
	std := [3]float32{0.5, 1, 1}

	data, w, h, err := NormalizeImagePooled(img, mean, std)
	require.NoError(t, err)
	defer mempool.PutFloat32(data)

	assert.Equal(t, 4, w)
	assert.Equal(t, 3, h)
	require.Len(t, data, 3*w*h)
	plane := w * h
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, -0.5, data[plane], 1e-6)
	assert.InDelta(t, -0.5, data[2*plane], 1e-6)
}

func TestNormalizeImagePooledErrors(t *testing.T) {
	_, _, _, err := NormalizeImagePooled(nil, [3]float32{}, [3]float32{1, 1, 1})
	assert.Error(t, err)
	_, _, _, err = NormalizeImagePooled(solid(2, 2, color.White), [3]float32{}, [3]float32{1, 0, 1})
	assert.Error(t, err)
}

func TestNormalizeBlackImage(t *testing.T) {
	data, _, _, err := NormalizeImagePooled(solid(2, 2, color.Black), [3]float32{}, [3]float32{1, 1, 1})
	require.NoError(t, err)
	defer mempool.PutFloat32(data)
	for _, v := range data {
		assert.Zero(t, v)
	}
}
