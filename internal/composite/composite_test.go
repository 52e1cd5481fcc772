package composite

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/mask"
	"github.com/MeKo-Tech/cutout/internal/testutil"
)

func halfCutout(t *testing.T) *image.RGBA {
	t.Helper()
	src := testutil.Solid(testutil.TinySize, color.RGBA{R: 200, A: 255})
	m := mask.New(32, 32)
	for y := range 32 {
		for x := range 16 {
			m.Set(x, y, 1)
		}
	}
	out, err := Cutout(src, m, false)
	require.NoError(t, err)
	return out
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FFFFFF", color.NRGBA{255, 255, 255, 255}, false},
		{"#0f0", color.NRGBA{0, 255, 0, 255}, false},
		{"336699", color.NRGBA{0x33, 0x66, 0x99, 255}, false},
		{"", color.NRGBA{}, true},
		{"#12345", color.NRGBA{}, true},
		{"blue", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidColor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeRemove, "remove": ModeRemove, "Color": ModeColor, "image": ModeImage} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("blur")
	assert.Error(t, err)
}

func TestCutoutBinaryAlpha(t *testing.T) {
	src := testutil.Solid(testutil.TinySize, color.White)
	m := mask.Filled(32, 32, 0.7)
	m.Set(0, 0, 0.3)
	out, err := Cutout(src, m, true)
	require.NoError(t, err)
	assert.Equal(t, uint8(255), out.RGBAAt(5, 5).A)
	assert.Equal(t, uint8(0), out.RGBAAt(0, 0).A)

	_, err = Cutout(src, mask.New(3, 3), false)
	assert.ErrorIs(t, err, mask.ErrSizeMismatch)
}

func TestComposeRemove(t *testing.T) {
	cut := halfCutout(t)
	out, err := Compose(cut, Background{Mode: ModeRemove})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.RGBAAt(20, 5).A)
	assert.Equal(t, uint8(255), out.RGBAAt(5, 5).A)
}

func TestComposeColor(t *testing.T) {
	out, err := Compose(halfCutout(t), Background{Mode: ModeColor, Color: "#0000FF"})
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, out.RGBAAt(20, 5))
	assert.Equal(t, color.RGBA{200, 0, 0, 255}, out.RGBAAt(5, 5))

	_, err = Compose(halfCutout(t), Background{Mode: ModeColor, Color: "nope"})
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestComposeImage(t *testing.T) {
	bgPath := testutil.WriteTempImage(t, testutil.Solid(testutil.ImageSize{Width: 64, Height: 64}, color.RGBA{G: 255, A: 255}), "bg.png")
	out, err := Compose(halfCutout(t), Background{Mode: ModeImage, ImagePath: bgPath})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 32), out.Bounds())
	assert.Equal(t, uint8(255), out.RGBAAt(20, 5).G)
	assert.Equal(t, uint8(255), out.RGBAAt(20, 5).A)
	assert.Equal(t, uint8(200), out.RGBAAt(5, 5).R)
}

func TestComposeMissingImageDegradesToTransparent(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.png")
	out, err := Compose(halfCutout(t), Background{Mode: ModeImage, ImagePath: missing})
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.RGBAAt(20, 5).A)
	assert.Equal(t, uint8(255), out.RGBAAt(5, 5).A)
}

func TestFitBackground(t *testing.T) {
	wide := testutil.Solid(testutil.ImageSize{Width: 200, Height: 50}, color.White)
	out := FitBackground(wide, 40, 40)
	assert.Equal(t, image.Rect(0, 0, 40, 40), out.Bounds())

	similar := testutil.Solid(testutil.ImageSize{Width: 105, Height: 100}, color.White)
	out = FitBackground(similar, 50, 50)
	assert.Equal(t, image.Rect(0, 0, 50, 50), out.Bounds())
}
