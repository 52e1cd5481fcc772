package segment

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/models"
	"github.com/MeKo-Tech/cutout/internal/onnx"
	"github.com/MeKo-Tech/cutout/internal/testutil"
)

// fakeRunner returns a centred square of high saliency on a low floor.
type fakeRunner struct {
	low, high float32
	err       error
	closed    bool
	gotShape  []int64
}

func (f *fakeRunner) Run(t onnx.Tensor) (onnx.Tensor, error) {
	f.gotShape = t.Shape
	if f.err != nil {
		return onnx.Tensor{}, f.err
	}
	h, w := int(t.Shape[2]), int(t.Shape[3])
	data := make([]float32, h*w)
	for y := range h {
		for x := range w {
			v := f.low
			if x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4 {
				v = f.high
			}
			data[y*w+x] = v
		}
	}
	return onnx.Tensor{Data: data, Shape: []int64{1, 1, int64(h), int64(w)}}, nil
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return nil
}

func TestModelBackendSegment(t *testing.T) {
	info, ok := models.Lookup(models.IDU2Net)
	require.True(t, ok)
	runner := &fakeRunner{low: -3, high: 5}
	b := NewModelBackend(info, runner)

	img := testutil.Solid(testutil.SmallSize, color.White)
	res, err := b.Segment(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 3, 320, 320}, runner.gotShape)
	assert.Equal(t, models.IDU2Net, res.Backend)
	assert.InDelta(t, info.Weight, res.Weight, 1e-9)
	assert.Equal(t, testutil.SmallSize.Width, res.Mask.Width)
	assert.Equal(t, testutil.SmallSize.Height, res.Mask.Height)
	for _, v := range res.Mask.Pix {
		assert.True(t, v >= 0 && v <= 1)
	}
	assert.InDelta(t, 0.25, res.Mask.ForegroundRatio(), 0.05)

	require.NoError(t, b.Close())
	assert.True(t, runner.closed)
}

func TestModelBackendSigmoidOutput(t *testing.T) {
	info, ok := models.Lookup(models.IDMatting)
	require.True(t, ok)
	b := NewModelBackend(info, &fakeRunner{low: -8, high: 8})
	res, err := b.Segment(context.Background(), testutil.Solid(testutil.TinySize, color.Black))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Mask.At(16, 16), 1e-3)
	assert.InDelta(t, 0.0, res.Mask.At(0, 0), 1e-3)
}

func TestModelBackendFlatOutputIsEmpty(t *testing.T) {
	info, _ := models.Lookup(models.IDSilueta)
	b := NewModelBackend(info, &fakeRunner{low: 0.7, high: 0.7})
	res, err := b.Segment(context.Background(), testutil.Solid(testutil.TinySize, color.White))
	require.NoError(t, err)
	assert.True(t, res.Mask.IsZero())
}

func TestModelBackendErrors(t *testing.T) {
	info, _ := models.Lookup(models.IDU2Net)
	boom := errors.New("boom")
	b := NewModelBackend(info, &fakeRunner{err: boom})
	_, err := b.Segment(context.Background(), testutil.Solid(testutil.TinySize, color.White))
	assert.ErrorIs(t, err, boom)

	_, err = b.Segment(context.Background(), nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Segment(ctx, testutil.Solid(testutil.TinySize, color.White))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadModels(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{models.SegmentationU2Net, models.SegmentationSilueta} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("onnx"), 0o600))
	}

	opener := func(path string, _ LoadConfig) (Runner, error) {
		if filepath.Base(path) == models.SegmentationSilueta {
			return nil, errors.New("corrupt model")
		}
		return &fakeRunner{low: 0, high: 1}, nil
	}

	reg := NewRegistry()
	LoadModels(reg, LoadConfig{
		ModelsDir: dir,
		Learned:   []string{models.IDU2Net, models.IDISNet, models.IDSilueta, "bogus"},
		Matting:   true,
	}, opener)

	assert.Equal(t, []string{models.IDU2Net}, reg.Available(KindLearned))
	assert.Empty(t, reg.Available(KindMatting))

	snap := reg.Snapshot()
	require.Len(t, snap, 4)
	reasons := map[string]string{}
	for _, c := range snap {
		reasons[c.ID] = c.Reason
	}
	assert.Contains(t, reasons[models.IDISNet], "not found")
	assert.Contains(t, reasons[models.IDSilueta], "corrupt")
	assert.Contains(t, reasons[models.IDMatting], "not found")
}

func TestModelBackendWithInstalledModel(t *testing.T) {
	path := testutil.RequireModel(t, models.IDU2Net)
	info, _ := models.Lookup(models.IDU2Net)

	runner, err := OpenSession(path, LoadConfig{})
	if err != nil {
		t.Skipf("onnx runtime unavailable: %v", err)
	}
	b := NewModelBackend(info, runner)
	defer func() { _ = b.Close() }()

	scene := testutil.Disc(testutil.SmallSize,
		color.RGBA{R: 245, G: 245, B: 245, A: 255}, color.RGBA{R: 200, G: 30, B: 30, A: 255}, 0.3)
	res, err := b.Segment(context.Background(), scene)
	require.NoError(t, err)
	require.NoError(t, res.Mask.Check())
	assert.Equal(t, testutil.SmallSize.Width, res.Mask.Width)
	assert.Equal(t, testutil.SmallSize.Height, res.Mask.Height)
	assert.Greater(t, res.Mask.At(res.Mask.Width/2, res.Mask.Height/2), float32(0.5))
}
