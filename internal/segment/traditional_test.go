package segment

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/testutil"
)

var (
	backdrop = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	subject  = color.RGBA{R: 40, G: 40, B: 160, A: 255}
)

func discScene() (*image.RGBA, *image.Gray) {
	return testutil.Disc(testutil.SmallSize, backdrop, subject, 0.3),
		testutil.DiscMask(testutil.SmallSize, 0.3)
}

func iou(m *mask.Mask, truth *image.Gray) float64 {
	return mask.Jaccard(m.Binary(mask.StrongForeground), mask.FromGray(truth).Binary(0.5))
}

func TestTraditionalBackendsOnDisc(t *testing.T) {
	img, truth := discScene()
	tests := []struct {
		backend Backend
		minIoU  float64
	}{
		{NewRegionCut(), 0.9},
		{NewEdgeFill(), 0.8},
		{NewColorCluster(), 0.9},
		{Threshold{}, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.backend.Name(), func(t *testing.T) {
			res, err := tt.backend.Segment(context.Background(), img)
			require.NoError(t, err)
			assert.Equal(t, tt.backend.Name(), res.Backend)
			require.NoError(t, res.Mask.Check())
			assert.Equal(t, img.Bounds().Dx(), res.Mask.Width)
			assert.GreaterOrEqual(t, iou(res.Mask, truth), tt.minIoU)
		})
	}
}

func TestBackendsRejectEmptyInput(t *testing.T) {
	for _, b := range append(TraditionalBackends(), Threshold{}) {
		_, err := b.Segment(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
		assert.Error(t, err, b.Name())
	}
}

func TestEdgeFillUniformHasNoResult(t *testing.T) {
	_, err := NewEdgeFill().Segment(context.Background(), testutil.Solid(testutil.SmallSize, color.White))
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestRegionCutUniformHasNoResult(t *testing.T) {
	_, err := NewRegionCut().Segment(context.Background(), testutil.Solid(testutil.SmallSize, color.White))
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestColorClusterUniformFallsBack(t *testing.T) {
	res, err := NewColorCluster().Segment(context.Background(), testutil.Solid(testutil.SmallSize, color.White))
	require.NoError(t, err)
	assert.True(t, res.Mask.IsZero())
}

func TestThresholdUniformIsEmpty(t *testing.T) {
	res, err := Threshold{}.Segment(context.Background(), testutil.Solid(testutil.MediumSize, color.White))
	require.NoError(t, err)
	assert.Zero(t, res.Mask.ForegroundRatio())
}

func TestThresholdLightSubjectOnDark(t *testing.T) {
	img := testutil.Disc(testutil.SmallSize, color.Black, color.White, 0.3)
	res, err := Threshold{}.Segment(context.Background(), img)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, iou(res.Mask, testutil.DiscMask(testutil.SmallSize, 0.3)), 0.9)
}

func TestSeedRect(t *testing.T) {
	img, _ := discScene()
	r := SeedRect(mask.Grayscale(img))
	disc := image.Rect(44, 24, 116, 96)
	assert.True(t, disc.In(r), "seed %v should contain disc %v", r, disc)
	assert.NotEqual(t, img.Bounds(), r)

	r = SeedRect(mask.Grayscale(testutil.Solid(testutil.SmallSize, color.White)))
	assert.Equal(t, image.Rect(12, 12, 148, 108), r)
}

func TestRegionCutCancelled(t *testing.T) {
	img, _ := discScene()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRegionCut().Segment(ctx, img)
	assert.ErrorIs(t, err, context.Canceled)
}
