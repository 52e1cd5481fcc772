package analysis

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/testutil"
)

func halves(w, h int) *image.RGBA {
	img := testutil.Solid(testutil.ImageSize{Width: w, Height: h}, color.Black)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestAnalyzeComplexity(t *testing.T) {
	tests := []struct {
		name        string
		img         image.Image
		wantComplex bool
		check       func(t *testing.T, m ComplexityMetrics)
	}{
		{
			name: "solid white is simple",
			img:  testutil.Solid(testutil.ImageSize{Width: 100, Height: 100}, color.White),
			check: func(t *testing.T, m ComplexityMetrics) {
				assert.Zero(t, m.EdgeDensity)
				assert.InDelta(t, 0, m.ColorVariance, 1e-9)
				assert.InDelta(t, 0, m.TextureEnergy, 1e-6)
				assert.InDelta(t, 0, m.CornerVariance, 1e-9)
			},
		},
		{
			name:        "stripes are complex",
			img:         testutil.Stripes(testutil.ImageSize{Width: 100, Height: 100}, 8),
			wantComplex: true,
			check: func(t *testing.T, m ComplexityMetrics) {
				assert.Greater(t, m.EdgeDensity, EdgeDensityThreshold)
				assert.Greater(t, m.ColorVariance, ColorVarianceThreshold)
			},
		},
		{
			name:        "black and white halves",
			img:         halves(100, 100),
			wantComplex: true,
			check: func(t *testing.T, m ComplexityMetrics) {
				assert.InDelta(t, 127.5*127.5, m.CornerVariance, 1)
				assert.Less(t, m.EdgeDensity, EdgeDensityThreshold)
			},
		},
		{
			name: "single pixel does not panic",
			img:  testutil.Solid(testutil.ImageSize{Width: 1, Height: 1}, color.White),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := AnalyzeComplexity(tt.img)
			assert.Equal(t, tt.wantComplex, m.IsComplex)
			if tt.check != nil {
				tt.check(t, m)
			}
		})
	}
}

func TestAnalyzeComplexity_Nil(t *testing.T) {
	assert.Equal(t, ComplexityMetrics{}, AnalyzeComplexity(nil))
	assert.Equal(t, ComplexityMetrics{}, AnalyzeComplexity(image.NewRGBA(image.Rect(0, 0, 0, 0))))
}

func TestCornerMeans(t *testing.T) {
	gray := mask.Grayscale(halves(20, 10))
	c := CornerMeans(gray)
	assert.InDelta(t, 0, c[0], 1e-6)
	assert.InDelta(t, 1, c[1], 1e-6)
	assert.InDelta(t, 0, c[2], 1e-6)
	assert.InDelta(t, 1, c[3], 1e-6)
}
