package pipeline

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/composite"
	"github.com/MeKo-Tech/cutout/internal/enhance"
	"github.com/MeKo-Tech/cutout/internal/selector"
)

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mut     func(*Settings)
		wantErr bool
	}{
		{"defaults", nil, false},
		{"color", func(s *Settings) { s.BackgroundMode = "color"; s.BackgroundColor = "#abc" }, false},
		{"bad color", func(s *Settings) { s.BackgroundMode = "color"; s.BackgroundColor = "#zz0000" }, true},
		{"image without source", func(s *Settings) { s.BackgroundMode = "image" }, true},
		{"image data", func(s *Settings) {
			s.BackgroundMode = "image"
			s.BackgroundImageData = image.NewRGBA(image.Rect(0, 0, 4, 4))
		}, false},
		{"unknown mode", func(s *Settings) { s.BackgroundMode = "blur" }, true},
		{"unknown quality", func(s *Settings) { s.Quality = "max" }, true},
		{"unknown level", func(s *Settings) { s.EnhancementLevel = "extreme" }, true},
		{"negative feathering", func(s *Settings) { s.Feathering = -1 }, true},
		{"negative edge refinement", func(s *Settings) { s.EdgeRefinement = -0.5 }, true},
		{"negative max dimension", func(s *Settings) { s.MaxDimension = -1 }, true},
		{"NaN edge refinement", func(s *Settings) { s.EdgeRefinement = math.NaN() }, true},
		{"infinite edge refinement", func(s *Settings) { s.EdgeRefinement = math.Inf(1) }, true},
		{"NaN feathering", func(s *Settings) { s.Feathering = math.NaN() }, true},
		{"infinite feathering", func(s *Settings) { s.Feathering = math.Inf(1) }, true},
		{"huge feathering", func(s *Settings) { s.Feathering = 1e12 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := settingsWith(tt.mut).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSettingsResolve(t *testing.T) {
	r, err := settingsWith(func(s *Settings) {
		s.Quality = "ultra_high"
		s.BackgroundMode = "color"
		s.Feathering = 2
	}).resolve()
	require.NoError(t, err)
	assert.Equal(t, selector.QualityUltra, r.quality)
	assert.Equal(t, composite.ModeColor, r.background.Mode)
	assert.Equal(t, enhance.LevelUltra, r.enhance.Level)
	assert.True(t, r.enhance.Details)
	assert.True(t, r.enhance.HairRefinement)
	assert.InDelta(t, 2.0, r.enhance.Feathering, 1e-9)

	r, err = settingsWith(func(s *Settings) {
		s.Quality = "ultra_high"
		s.EnhancementLevel = "low"
		s.EnhanceDetails = false
	}).resolve()
	require.NoError(t, err)
	assert.Equal(t, enhance.LevelLow, r.enhance.Level)
	assert.False(t, r.enhance.HairRefinement, "hair refinement follows detail enhancement")
}
