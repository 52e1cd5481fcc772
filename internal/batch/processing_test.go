package batch

import (
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

func TestOutputNamer(t *testing.T) {
	n := newOutputNamer("", utils.FormatPNG)
	assert.Equal(t, filepath.Join("in", "cat_cutout.png"), n.next(filepath.Join("in", "cat.jpg")))
	assert.Equal(t, filepath.Join("other", "cat_cutout.png"), n.next(filepath.Join("other", "cat.png")))

	collided := n.next(filepath.Join("in", "cat.png"))
	assert.NotEqual(t, filepath.Join("in", "cat_cutout.png"), collided)
	assert.True(t, strings.HasPrefix(filepath.Base(collided), "cat_cutout_"))
	assert.True(t, isCutoutOutput(collided))

	out := newOutputNamer("out", utils.FormatJPEG)
	assert.Equal(t, filepath.Join("out", "dog_cutout.jpg"), out.next(filepath.Join("a", "b", "dog.webp")))
}

func TestMatteColor(t *testing.T) {
	s := pipeline.DefaultSettings()
	s.BackgroundColor = "#ff0000"
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, matteColor(s))

	s.BackgroundColor = "not a color"
	assert.Equal(t, color.White, matteColor(s))
}
