package batch

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/segment"
	"github.com/MeKo-Tech/cutout/internal/testutil"
)

var (
	backdrop = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	subject  = color.RGBA{R: 40, G: 40, B: 160, A: 255}
)

// traditionalConfig processes without model files.
func traditionalConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Pipeline.Learned = nil
	cfg.Pipeline.Matting = false
	cfg.Registry = segment.NewRegistry()
	cfg.Workers = 2
	cfg.Quiet = true
	cfg.ShowProgress = false
	return cfg
}

func writeScenes(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		testutil.SaveImage(t, testutil.Disc(testutil.SmallSize, backdrop, subject, 0.3), filepath.Join(dir, n))
	}
}

func TestProcessBatchWritesCutouts(t *testing.T) {
	dir := t.TempDir()
	writeScenes(t, dir, "one.png", "two.png")

	res, err := ProcessBatch(context.Background(), []string{dir}, traditionalConfig(t))
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Zero(t, res.Failures())
	assert.Equal(t, 2, res.Stats.ProcessedImages)

	for _, it := range res.Items {
		require.FileExists(t, it.Output)
		out := testutil.LoadImage(t, it.Output)
		assert.Equal(t, testutil.SmallSize.Width, out.Bounds().Dx())
		assert.GreaterOrEqual(t, testutil.IoU(out, testutil.DiscMask(testutil.SmallSize, 0.3)), 0.8)
	}
	assert.Equal(t, filepath.Join(dir, "one_cutout.png"), res.Items[0].Output)

	// A second run does not pick up its own outputs.
	res, err = ProcessBatch(context.Background(), []string{dir}, traditionalConfig(t))
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
}

func TestProcessBatchOutputDirAndJPEG(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeScenes(t, dir, "scene.png")

	cfg := traditionalConfig(t)
	cfg.OutputDir = out
	cfg.Format = "jpg"
	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, filepath.Join(out, "scene_cutout.jpg"), res.Items[0].Output)
	assert.FileExists(t, res.Items[0].Output)
}

func TestProcessBatchLoadFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenes(t, dir, "good.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not an image"), 0o600))

	_, err := ProcessBatch(context.Background(), []string{dir}, traditionalConfig(t))
	assert.Error(t, err)

	cfg := traditionalConfig(t)
	cfg.ContinueOnError = true
	res, err := ProcessBatch(context.Background(), []string{dir}, cfg)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 1, res.Failures())
	assert.True(t, res.Items[0].Failed())
	assert.Contains(t, res.Items[0].Error, "broken.png")
	assert.FileExists(t, res.Items[1].Output)
}

func TestProcessBatchErrors(t *testing.T) {
	_, err := ProcessBatch(context.Background(), []string{t.TempDir()}, traditionalConfig(t))
	assert.ErrorContains(t, err, "no image files")

	cfg := traditionalConfig(t)
	cfg.Format = "gif"
	_, err = ProcessBatch(context.Background(), []string{t.TempDir()}, cfg)
	assert.Error(t, err)

	dir := t.TempDir()
	writeScenes(t, dir, "a.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ProcessBatch(ctx, []string{dir}, traditionalConfig(t))
	assert.ErrorIs(t, err, context.Canceled)
}
