package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/config"
	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/MeKo-Tech/cutout/internal/utils"
)

// traditionalConfig avoids loading model files.
func traditionalConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Segmentation.LearnedEnabled = false
	cfg.Segmentation.Matting = false
	return &cfg
}

func writeScene(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	scene := testutil.Disc(testutil.SmallSize,
		color.RGBA{R: 250, G: 250, B: 250, A: 255}, color.RGBA{R: 40, G: 40, B: 160, A: 255}, 0.3)
	testutil.SaveImage(t, scene, p)
	return p
}

func TestRunImagesWritesCutout(t *testing.T) {
	dir := t.TempDir()
	in := writeScene(t, dir, "scene.png")

	var out bytes.Buffer
	err := runImages(context.Background(), &out, traditionalConfig(), imageOptions{Files: []string{in}, JSON: true})
	require.NoError(t, err)

	var rep imageReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep))
	assert.Equal(t, filepath.Join(dir, "scene_cutout.png"), rep.Output)
	assert.Equal(t, "traditional", rep.Strategy)
	require.FileExists(t, rep.Output)

	img := testutil.LoadImage(t, rep.Output)
	assert.GreaterOrEqual(t, testutil.IoU(img, testutil.DiscMask(testutil.SmallSize, 0.3)), 0.8)
}

func TestRunImagesJPEGIntoOutputDir(t *testing.T) {
	in := writeScene(t, t.TempDir(), "scene.png")
	outDir := t.TempDir()
	cfg := traditionalConfig()
	cfg.Output.Format = "jpeg"

	var out bytes.Buffer
	require.NoError(t, runImages(context.Background(), &out, cfg, imageOptions{Files: []string{in}, OutputDir: outDir}))
	assert.FileExists(t, filepath.Join(outDir, "scene_cutout.jpg"))
	assert.Contains(t, out.String(), "scene_cutout.jpg")
}

func TestRunImagesRejectsBadInput(t *testing.T) {
	var out bytes.Buffer
	err := runImages(context.Background(), &out, traditionalConfig(), imageOptions{Files: []string{"notes.txt"}})
	assert.ErrorContains(t, err, "unsupported image format")

	err = runImages(context.Background(), &out, traditionalConfig(), imageOptions{Files: []string{filepath.Join(t.TempDir(), "missing.png")}})
	assert.ErrorContains(t, err, "1 of 1 images failed")

	cfg := traditionalConfig()
	cfg.Output.BgQuality = "best"
	err = runImages(context.Background(), &out, cfg, imageOptions{Files: []string{"a.png"}})
	assert.Error(t, err)
}

func TestRunImagesAnalyze(t *testing.T) {
	in := writeScene(t, t.TempDir(), "scene.png")

	var out bytes.Buffer
	require.NoError(t, runImages(context.Background(), &out, traditionalConfig(), imageOptions{Files: []string{in}, Analyze: true}))
	assert.Contains(t, out.String(), "complex:")
	assert.Contains(t, out.String(), "quality:")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(in), "scene_cutout.png"))
}

func TestCutoutPath(t *testing.T) {
	assert.Equal(t, filepath.Join("in", "cat_cutout.png"), cutoutPath(filepath.Join("in", "cat.jpg"), "", utils.FormatPNG))
	assert.Equal(t, filepath.Join("out", "cat_cutout.jpg"), cutoutPath(filepath.Join("in", "cat.webp"), "out", utils.FormatJPEG))
}

func TestListModels(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listModels(&out, traditionalConfig(), false))
	assert.Contains(t, out.String(), "edge_fill")
	assert.Contains(t, out.String(), "threshold")

	out.Reset()
	require.NoError(t, listModels(&out, traditionalConfig(), true))
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	assert.NotEmpty(t, rows)
}
