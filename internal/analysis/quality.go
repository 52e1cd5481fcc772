package analysis

import (
	"image"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

// Quality thresholds.
const (
	BlurThreshold  = 150.0
	NoiseThreshold = 0.2
	MinResolution  = 200 * 200
)

// QualityReport summarizes input image quality.
type QualityReport struct {
	BlurLevel        float64  `json:"blur_level"`
	NoiseLevel       float64  `json:"noise_level"`
	IsBlurry         bool     `json:"is_blurry"`
	IsNoisy          bool     `json:"is_noisy"`
	IsLowResolution  bool     `json:"is_low_resolution"`
	Score            float64  `json:"quality_score"`
	NeedsEnhancement bool     `json:"needs_enhancement"`
	Recommendations  []string `json:"recommendations,omitempty"`
}

// AssessQuality measures blur (Laplacian variance), a global noise estimate
// (gray standard deviation / 255) and resolution.
func AssessQuality(img image.Image) QualityReport {
	if img == nil || img.Bounds().Empty() {
		return QualityReport{IsLowResolution: true, Score: 0.7}
	}
	gray := mask.Grayscale(img)

	lap := mask.Laplacian(gray)
	lv := make([]float64, len(lap))
	for i, v := range lap {
		lv[i] = float64(v) * 255
	}
	g := make([]float64, len(gray.Pix))
	for i, v := range gray.Pix {
		g[i] = float64(v)
	}

	r := QualityReport{
		BlurLevel:  stat.PopVariance(lv, nil),
		NoiseLevel: stat.PopStdDev(g, nil),
	}
	b := img.Bounds()
	r.IsBlurry = r.BlurLevel < BlurThreshold
	r.IsNoisy = r.NoiseLevel > NoiseThreshold
	r.IsLowResolution = b.Dx()*b.Dy() < MinResolution

	r.Score = 1.0
	if r.IsBlurry {
		r.Score -= 0.3
		r.Recommendations = append(r.Recommendations, "image looks blurry, edges may be soft")
	}
	if r.IsNoisy {
		r.Score -= 0.2
		r.Recommendations = append(r.Recommendations, "high intensity spread, consider a cleaner background")
	}
	if r.IsLowResolution {
		r.Score -= 0.3
		r.Recommendations = append(r.Recommendations, "resolution below 200x200, fine detail will be lost")
	}
	r.Score = max(0, r.Score)
	r.NeedsEnhancement = r.IsBlurry || r.IsNoisy || r.IsLowResolution
	return r
}

// Enhance returns a copy of img prepared for segmentation: a light blur for
// noisy input, sharpening for blurry input and a contrast lift for very poor
// input. The original is returned unchanged when no enhancement is needed.
func Enhance(img image.Image, q QualityReport) image.Image {
	if !q.NeedsEnhancement {
		return img
	}
	out := imaging.Clone(img)
	if q.NoiseLevel > 0.15 {
		out = imaging.Blur(out, 0.6)
	}
	if q.BlurLevel < 100 {
		out = imaging.Sharpen(out, 1.2)
	}
	if q.Score < 0.5 {
		out = imaging.AdjustContrast(out, 10)
	}
	return out
}
