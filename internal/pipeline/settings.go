package pipeline

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/cutout/internal/composite"
	"github.com/MeKo-Tech/cutout/internal/enhance"
	"github.com/MeKo-Tech/cutout/internal/selector"
)

// DefaultMaxDimension bounds the longer image side during segmentation.
const DefaultMaxDimension = 1024

// Settings are the per-request processing options. The pipeline never
// mutates them.
type Settings struct {
	BackgroundMode  string `json:"bg_mode" yaml:"bg_mode"`
	BackgroundColor string `json:"bg_color" yaml:"bg_color"`
	BackgroundImage string `json:"bg_image,omitempty" yaml:"bg_image"`
	// BackgroundImageData takes precedence over BackgroundImage when set.
	BackgroundImageData image.Image `json:"-" yaml:"-"`

	Quality string `json:"bg_quality" yaml:"bg_quality"`

	EnhanceDetails   bool    `json:"enhance_details" yaml:"enhance_details"`
	EnhancementLevel string  `json:"enhancement_level,omitempty" yaml:"enhancement_level"`
	HairRefinement   bool    `json:"hair_refinement" yaml:"hair_refinement"`
	EdgeRefinement   float64 `json:"edge_refinement" yaml:"edge_refinement"`
	Feathering       float64 `json:"feathering" yaml:"feathering"`

	PreserveHoles    bool `json:"preserve_holes" yaml:"preserve_holes"`
	ForceBinaryAlpha bool `json:"force_binary_alpha" yaml:"force_binary_alpha"`

	// MaxDimension of 0 disables the processing resize.
	MaxDimension int `json:"max_dimension" yaml:"max_dimension"`
}

// DefaultSettings removes the background at high quality with detail
// enhancement and hair refinement on.
func DefaultSettings() Settings {
	return Settings{
		BackgroundMode:  composite.ModeRemove.String(),
		BackgroundColor: "#FFFFFF",
		Quality:         selector.QualityHigh.String(),
		EnhanceDetails:  true,
		HairRefinement:  true,
		EdgeRefinement:  1,
		MaxDimension:    DefaultMaxDimension,
	}
}

// resolved holds parsed settings.
type resolved struct {
	quality    selector.Quality
	background composite.Background
	enhance    enhance.Options
}

// Validate rejects unknown enum values, negative numbers and unusable
// backgrounds.
func (s Settings) Validate() error {
	_, err := s.resolve()
	return err
}

func (s Settings) resolve() (resolved, error) {
	var r resolved
	var err error

	if r.quality, err = selector.ParseQuality(s.Quality); err != nil {
		return r, err
	}

	mode, err := composite.ParseMode(s.BackgroundMode)
	if err != nil {
		return r, err
	}
	r.background = composite.Background{
		Mode:      mode,
		Color:     s.BackgroundColor,
		ImagePath: s.BackgroundImage,
		Image:     s.BackgroundImageData,
	}
	switch mode {
	case composite.ModeColor:
		if _, err := composite.ParseColor(s.BackgroundColor); err != nil {
			return r, err
		}
	case composite.ModeImage:
		if s.BackgroundImage == "" && s.BackgroundImageData == nil {
			return r, errors.New("background mode image requires a background image")
		}
	}

	level, err := enhance.ParseLevel(s.EnhancementLevel)
	if err != nil {
		return r, err
	}
	if s.EnhancementLevel == "" && r.quality == selector.QualityUltra {
		level = enhance.LevelUltra
	}

	switch {
	case !finite(s.EdgeRefinement):
		return r, fmt.Errorf("edge refinement must be a finite number, got %v", s.EdgeRefinement)
	case !finite(s.Feathering):
		return r, fmt.Errorf("feathering must be a finite number, got %v", s.Feathering)
	case s.EdgeRefinement < 0:
		return r, fmt.Errorf("edge refinement must be >= 0, got %v", s.EdgeRefinement)
	case s.Feathering < 0:
		return r, fmt.Errorf("feathering must be >= 0, got %v", s.Feathering)
	case s.MaxDimension < 0:
		return r, fmt.Errorf("max dimension must be >= 0, got %d", s.MaxDimension)
	}

	r.enhance = enhance.Options{
		Details:        s.EnhanceDetails,
		Level:          level,
		EdgeRefinement: s.EdgeRefinement,
		HairRefinement: s.EnhanceDetails && s.HairRefinement,
		Feathering:     s.Feathering,
	}
	return r, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
