package pipeline

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/segment"
	"github.com/MeKo-Tech/cutout/internal/testutil"
)

var (
	backdrop = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	subject  = color.RGBA{R: 40, G: 40, B: 160, A: 255}
)

// fakeBackend returns a fixed shape or an error.
type fakeBackend struct {
	name  string
	err   error
	shape func(w, h int) *mask.Mask
	calls atomic.Int32
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Segment(_ context.Context, img image.Image) (*segment.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	b := img.Bounds()
	return &segment.Result{Mask: f.shape(b.Dx(), b.Dy()), Backend: f.name}, nil
}

// centerSquare covers the middle half of each axis.
func centerSquare(w, h int) *mask.Mask {
	m := mask.New(w, h)
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			m.Set(x, y, 1)
		}
	}
	return m
}

func full(w, h int) *mask.Mask { return mask.Filled(w, h, 1) }

func discScene() *image.RGBA {
	return testutil.Disc(testutil.SmallSize, backdrop, subject, 0.3)
}

// newTestPipeline builds a pipeline over reg with no model loading.
func newTestPipeline(t *testing.T, reg *segment.Registry) *Pipeline {
	t.Helper()
	if reg == nil {
		reg = segment.NewRegistry()
	}
	p, err := NewBuilder().
		WithLearnedModels().
		WithMatting(false).
		WithRegistry(reg).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func settingsWith(mut func(*Settings)) Settings {
	s := DefaultSettings()
	if mut != nil {
		mut(&s)
	}
	return s
}

func alphaAt(img *image.RGBA, x, y int) uint8 {
	return img.RGBAAt(x, y).A
}
