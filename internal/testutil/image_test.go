package testutil

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscAndMaskAgree(t *testing.T) {
	size := ImageSize{64, 48}
	img := Disc(size, color.White, color.Black, 0.3)
	truth := DiscMask(size, 0.3)

	assert.Equal(t, size.Width, img.Bounds().Dx())
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(32, 24))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, uint8(255), truth.GrayAt(32, 24).Y)
	assert.Equal(t, uint8(0), truth.GrayAt(0, 0).Y)
}

func TestStripesAlternate(t *testing.T) {
	img := Stripes(ImageSize{8, 2}, 2)
	assert.NotEqual(t, img.RGBAAt(0, 0), img.RGBAAt(1, 0))
	assert.Equal(t, img.RGBAAt(0, 0), img.RGBAAt(2, 0))
}

func TestNoiseIsDeterministic(t *testing.T) {
	a := Noise(TinySize, 7)
	b := Noise(TinySize, 7)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	img := Checker(TinySize, 4, color.White, color.Black)
	path := WriteTempImage(t, img, "checker.png")
	assert.True(t, FileExists(path))
	assert.Equal(t, ".png", filepath.Ext(path))

	back := LoadImage(t, path)
	assert.Equal(t, img.Bounds(), back.Bounds())
}

func TestAlphaRatioAndIoU(t *testing.T) {
	opaque := Solid(TinySize, color.White)
	assert.InDelta(t, 1.0, AlphaRatio(opaque), 1e-9)

	transparent := Solid(TinySize, color.Transparent)
	assert.InDelta(t, 0.0, AlphaRatio(transparent), 1e-9)

	truth := DiscMask(TinySize, 0.3)
	assert.InDelta(t, 0.0, IoU(transparent, truth), 1e-9)
}

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	assert.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestSaveImageCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "tiny.png")
	SaveImage(t, Noise(TinySize, 1), path)
	assert.True(t, FileExists(path))
	assert.NoError(t, EnsureDir(filepath.Dir(path)))
}
