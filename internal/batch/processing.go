package batch

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"

	"github.com/MeKo-Tech/cutout/internal/composite"
	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// loadImages decodes every path. A file that fails to load leaves a nil
// image and a non-nil error at its index.
func loadImages(paths []string) ([]image.Image, []error) {
	images := make([]image.Image, len(paths))
	errs := make([]error, len(paths))
	for i, p := range paths {
		img, _, err := utils.LoadImage(p)
		if err != nil {
			slog.Warn("failed to load image", "file", p, "error", err)
			errs[i] = fmt.Errorf("failed to load %s: %w", p, err)
			continue
		}
		images[i] = img
	}
	return images, errs
}

// outputNamer assigns <name>_cutout<ext> paths, switching to
// <name>_cutout_<ksuid><ext> when two inputs would collide.
type outputNamer struct {
	dir  string
	ext  string
	used map[string]bool
}

func newOutputNamer(dir string, format utils.OutputFormat) *outputNamer {
	return &outputNamer{dir: dir, ext: format.Extension(), used: make(map[string]bool)}
}

func (n *outputNamer) next(input string) string {
	dir := n.dir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	out := filepath.Join(dir, stem+OutputSuffix+n.ext)
	if n.used[out] {
		out = filepath.Join(dir, stem+OutputSuffix+"_"+ksuid.New().String()+n.ext)
	}
	n.used[out] = true
	return out
}

// matteColor is the flattening color for formats without alpha.
func matteColor(s pipeline.Settings) color.Color {
	if c, err := composite.ParseColor(s.BackgroundColor); err == nil {
		return c
	}
	return color.White
}

// writeItem saves one result and describes it.
func writeItem(input string, res *pipeline.Result, namer *outputNamer, opts utils.EncodeOptions) Item {
	it := Item{
		Input:           input,
		Width:           res.Width,
		Height:          res.Height,
		Backend:         res.Backend,
		Strategy:        res.Strategy,
		Degraded:        res.Degraded,
		ForegroundRatio: res.ForegroundRatio(),
		DurationMs:      float64(res.Duration.Microseconds()) / 1000,
	}
	out := namer.next(input)
	if err := utils.SaveImage(out, res.Image, opts); err != nil {
		it.Error = fmt.Sprintf("failed to save %s: %v", out, err)
		return it
	}
	it.Output = out
	return it
}
