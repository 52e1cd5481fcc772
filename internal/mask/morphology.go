package mask

// MorphologicalOp represents the type of morphological operation to perform.
type MorphologicalOp int

const (
	MorphNone MorphologicalOp = iota
	MorphDilate
	MorphErode
	MorphOpening // erode then dilate, removes specks
	MorphClosing // dilate then erode, fills gaps
	MorphSmooth  // box average
)

// String returns the lower-case operation name.
func (op MorphologicalOp) String() string {
	switch op {
	case MorphDilate:
		return "dilate"
	case MorphErode:
		return "erode"
	case MorphOpening:
		return "open"
	case MorphClosing:
		return "close"
	case MorphSmooth:
		return "smooth"
	default:
		return "none"
	}
}

// MorphConfig holds configuration for morphological operations.
type MorphConfig struct {
	Operation  MorphologicalOp
	KernelSize int // square structuring element side, e.g. 3 for 3x3
	Iterations int
}

// Morph applies a morphological operation with a square structuring element
// and returns a new mask. Grayscale dilation and erosion are max and min
// filters, so values stay within the input range.
func Morph(m *Mask, cfg MorphConfig) *Mask {
	if cfg.Operation == MorphNone || cfg.KernelSize <= 1 || cfg.Iterations <= 0 {
		return m.Clone()
	}
	out := m
	for i := 0; i < cfg.Iterations; i++ {
		switch cfg.Operation {
		case MorphDilate:
			out = rankFilter(out, cfg.KernelSize, true)
		case MorphErode:
			out = rankFilter(out, cfg.KernelSize, false)
		case MorphOpening:
			out = rankFilter(rankFilter(out, cfg.KernelSize, false), cfg.KernelSize, true)
		case MorphClosing:
			out = rankFilter(rankFilter(out, cfg.KernelSize, true), cfg.KernelSize, false)
		case MorphSmooth:
			out = BoxBlur(out, cfg.KernelSize)
		}
	}
	if out == m {
		return m.Clone()
	}
	return out
}

// Dilate is shorthand for a single-iteration dilation.
func Dilate(m *Mask, size int) *Mask {
	return Morph(m, MorphConfig{Operation: MorphDilate, KernelSize: size, Iterations: 1})
}

// Erode is shorthand for a single-iteration erosion.
func Erode(m *Mask, size int) *Mask {
	return Morph(m, MorphConfig{Operation: MorphErode, KernelSize: size, Iterations: 1})
}

// Close is shorthand for a closing with the given kernel and iteration count.
func Close(m *Mask, size, iterations int) *Mask {
	return Morph(m, MorphConfig{Operation: MorphClosing, KernelSize: size, Iterations: iterations})
}

// DilateBools dilates a binary plane with a square element.
func DilateBools(b []bool, w, h, size int) []bool {
	return Dilate(FromBools(b, w, h), size).Binary(0.5)
}

// rankFilter runs a separable max (dilate) or min (erode) filter.
// Pixels outside the image are ignored.
func rankFilter(m *Mask, size int, takeMax bool) *Mask {
	w, h := m.Width, m.Height
	half := size / 2
	tmp := make([]float32, w*h)
	out := New(w, h)

	pick := func(a, b float32) float32 {
		if takeMax == (b > a) {
			return b
		}
		return a
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := m.Pix[y*w+x]
			for k := max(0, x-half); k <= min(w-1, x+half); k++ {
				v = pick(v, m.Pix[y*w+k])
			}
			tmp[y*w+x] = v
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := tmp[y*w+x]
			for k := max(0, y-half); k <= min(h-1, y+half); k++ {
				v = pick(v, tmp[k*w+x])
			}
			out.Pix[y*w+x] = v
		}
	}
	return out
}
