package mask

import (
	"math"

	"github.com/MeKo-Tech/cutout/internal/mempool"
)

// GaussianKernel returns a normalized 1-D Gaussian kernel. A non-positive
// size derives the size from sigma (radius = ceil(3*sigma)).
func GaussianKernel(size int, sigma float64) []float32 {
	if math.IsNaN(sigma) {
		sigma = 0
	}
	if sigma <= 0 {
		if size <= 1 {
			return []float32{1}
		}
		// same sigma OpenCV derives from an explicit aperture
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	if size <= 0 {
		size = 2*int(math.Ceil(3*sigma)) + 1
	}
	if size%2 == 0 {
		size++
	}
	half := size / 2
	k := make([]float32, size)
	var sum float64
	for i := -half; i <= half; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		k[i+half] = float32(v)
		sum += v
	}
	for i := range k {
		k[i] = float32(float64(k[i]) / sum)
	}
	return k
}

// GaussianBlur blurs with a Gaussian of the given sigma. The result is a new mask.
// The kernel radius never exceeds the longer mask side; past that every tap
// lands on a replicated border pixel.
func GaussianBlur(m *Mask, sigma float64) *Mask {
	limit := max(m.Width, m.Height)
	if math.Ceil(3*sigma) > float64(limit) {
		return Convolve(m, GaussianKernel(2*limit+1, sigma))
	}
	return Convolve(m, GaussianKernel(0, sigma))
}

// GaussianBlurSize blurs with an explicit aperture, as in GaussianBlur(m, (k, k), sigma).
func GaussianBlurSize(m *Mask, size int, sigma float64) *Mask {
	return Convolve(m, GaussianKernel(size, sigma))
}

// BoxBlur averages over a size x size window.
func BoxBlur(m *Mask, size int) *Mask {
	if size <= 1 {
		return m.Clone()
	}
	if size%2 == 0 {
		size++
	}
	k := make([]float32, size)
	for i := range k {
		k[i] = 1 / float32(size)
	}
	return Convolve(m, k)
}

// Convolve applies a separable symmetric kernel horizontally then vertically
// with replicated borders.
func Convolve(m *Mask, kernel []float32) *Mask {
	out := New(m.Width, m.Height)
	if len(m.Pix) == 0 {
		return out
	}
	if len(kernel) <= 1 {
		copy(out.Pix, m.Pix)
		return out
	}
	w, h := m.Width, m.Height
	half := len(kernel) / 2
	tmp := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(tmp)

	for y := 0; y < h; y++ {
		row := m.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float32
			for k := -half; k <= half; k++ {
				acc += kernel[k+half] * row[clampInt(x+k, 0, w-1)]
			}
			tmp[y*w+x] = acc
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float32
			for k := -half; k <= half; k++ {
				acc += kernel[k+half] * tmp[clampInt(y+k, 0, h-1)*w+x]
			}
			out.Pix[y*w+x] = acc
		}
	}
	return out
}

// Laplacian returns the 4-neighbour second derivative response.
// Values are not clipped and may be negative.
func Laplacian(m *Mask) []float32 {
	w, h := m.Width, m.Height
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := m.Pix[y*w+x]
			out[y*w+x] = m.At(x-1, y) + m.At(x+1, y) + m.At(x, y-1) + m.At(x, y+1) - 4*c
		}
	}
	return out
}

// Sobel returns the horizontal and vertical 3x3 Sobel derivatives.
func Sobel(m *Mask) (gx, gy []float32) {
	w, h := m.Width, m.Height
	gx = make([]float32, w*h)
	gy = make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			tl, tc, tr := m.At(x-1, y-1), m.At(x, y-1), m.At(x+1, y-1)
			ml, mr := m.At(x-1, y), m.At(x+1, y)
			bl, bc, br := m.At(x-1, y+1), m.At(x, y+1), m.At(x+1, y+1)
			gx[y*w+x] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy[y*w+x] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
	return gx, gy
}

// Lerp returns a*(1-t) + b*t per pixel, where t is a per-pixel weight plane.
func Lerp(a, b, t *Mask) (*Mask, error) {
	if !a.SameSize(b) || !a.SameSize(t) {
		return nil, ErrSizeMismatch
	}
	out := New(a.Width, a.Height)
	for i := range out.Pix {
		tt := clip01(t.Pix[i])
		out.Pix[i] = clip01(a.Pix[i]*(1-tt) + b.Pix[i]*tt)
	}
	return out, nil
}

// Max returns the pixel-wise maximum of the given masks.
func Max(ms ...*Mask) (*Mask, error) {
	if len(ms) == 0 {
		return nil, ErrEmpty
	}
	out := ms[0].Clone()
	for _, o := range ms[1:] {
		if !out.SameSize(o) {
			return nil, ErrSizeMismatch
		}
		for i, v := range o.Pix {
			if v > out.Pix[i] {
				out.Pix[i] = v
			}
		}
	}
	return out, nil
}

// Union returns the logical OR of binary planes of equal length.
func Union(planes ...[]bool) []bool {
	if len(planes) == 0 {
		return nil
	}
	out := make([]bool, len(planes[0]))
	for _, p := range planes {
		for i, v := range p {
			if v && i < len(out) {
				out[i] = true
			}
		}
	}
	return out
}
