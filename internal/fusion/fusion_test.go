package fusion

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/cutout/internal/mask"
)

func square(w, h, x0, y0, x1, y1 int, v float32) *mask.Mask {
	m := mask.New(w, h)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m.Set(x, y, v)
		}
	}
	return m
}

func TestFuseIdenticalIsIdentity(t *testing.T) {
	m := square(30, 30, 8, 8, 22, 22, 1)
	out, err := Fuse([]Candidate{{"a", m, 0.5}, {"b", m.Clone(), 0.5}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, toF64(m.Pix), toF64(out.Pix), 1e-6)
}

func TestFuseEdgeOverrideTakesMaximum(t *testing.T) {
	a := square(30, 30, 8, 8, 22, 22, 1)
	b := a.Clone()
	// b is dimmer on the boundary ring only
	planeA := mask.Canny(a, 50, 150)
	edges := mask.DilateBools(planeA, 30, 30, 3)
	for i, e := range edges {
		if e && b.Pix[i] > 0 {
			b.Pix[i] = 0.2
		}
	}

	out, err := Fuse([]Candidate{{"a", a, 0.1}, {"b", b, 0.9}})
	require.NoError(t, err)
	for i, e := range edges {
		if e {
			assert.InDelta(t, max(a.Pix[i], b.Pix[i]), out.Pix[i], 1e-6, "pixel %d", i)
		}
	}
}

// A near-zero-weight candidate still dictates boundary pixels.
func TestFuseLowWeightCandidateWinsAtEdges(t *testing.T) {
	strong := square(30, 30, 8, 8, 22, 22, 1)
	noisy := square(30, 30, 4, 4, 26, 26, 1)
	out, err := Fuse([]Candidate{{"strong", strong, 1}, {"noisy", noisy, 0}})
	require.NoError(t, err)
	// the noisy square's outline lies outside the strong square
	assert.InDelta(t, 1.0, out.At(4, 15), 1e-6)
	// away from any edge the zero weight has no effect
	assert.InDelta(t, 0.0, out.At(0, 0), 1e-6)
}

func TestFuseWeightedAverageAwayFromEdges(t *testing.T) {
	a := mask.Filled(20, 20, 0.8)
	b := mask.Filled(20, 20, 0.2)
	out, err := Fuse([]Candidate{{"a", a, 3}, {"b", b, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 0.65, out.At(10, 10), 1e-6)
}

func TestFuseErrors(t *testing.T) {
	_, err := Fuse(nil)
	assert.ErrorIs(t, err, ErrNoCandidates)

	_, err = Fuse([]Candidate{{"a", mask.New(4, 4), 1}, {"b", mask.New(5, 4), 1}})
	assert.ErrorIs(t, err, mask.ErrSizeMismatch)
}

func TestNormalizeNonPositiveWeights(t *testing.T) {
	w := normalize([]Candidate{{Weight: 0}, {Weight: -1}})
	assert.Equal(t, []float64{0.5, 0.5}, w)
}

func TestFuseOrBestFallsBack(t *testing.T) {
	good := square(10, 10, 2, 2, 8, 8, 1)
	cands := []Candidate{{"u2net", good, 0.4}, {"isnet", mask.New(12, 12), 0.3}}
	out, src, err := FuseOrBest(cands)
	require.NoError(t, err)
	assert.Equal(t, "u2net", src)
	assert.Equal(t, good.Pix, out.Pix)

	out, src, err = FuseOrBest([]Candidate{{"u2net", good, 0.4}, {"isnet", good, 0.3}})
	require.NoError(t, err)
	assert.Equal(t, "ensemble", src)
	assert.Equal(t, 10, out.Width)

	_, _, err = FuseOrBest(nil)
	assert.Error(t, err)
}

func TestFuseRangeProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("fused values stay in [0,1]", prop.ForAll(
		func(a, b []float32, wa, wb float64) bool {
			ma, mb := mask.New(8, 8), mask.New(8, 8)
			copy(ma.Pix, a)
			copy(mb.Pix, b)
			out, err := Fuse([]Candidate{{"a", ma.Clip(), wa}, {"b", mb.Clip(), wb}})
			if err != nil {
				return false
			}
			for _, v := range out.Pix {
				if v < 0 || v > 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(64, gen.Float32Range(-1, 2)),
		gen.SliceOfN(64, gen.Float32Range(-1, 2)),
		gen.Float64Range(-1, 5),
		gen.Float64Range(-1, 5),
	))
	properties.TestingRun(t)
}

func toF64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
