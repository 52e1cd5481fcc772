package mask

import "math"

// Canny detects edges in a [0,1] plane. Thresholds use the 8-bit intensity
// scale (0..255) and the L1 gradient norm with a 3x3 Sobel aperture, so the
// familiar (50, 150) pairs behave as they do in OpenCV.
func Canny(m *Mask, low, high float64) []bool {
	w, h := m.Width, m.Height
	edges := make([]bool, w*h)
	if w < 3 || h < 3 {
		return edges
	}
	if low > high {
		low, high = high, low
	}

	gx, gy := Sobel(m)
	mag := make([]float32, w*h)
	for i := range mag {
		mag[i] = (abs32(gx[i]) + abs32(gy[i])) * 255
	}

	// non-maximum suppression along the quantized gradient direction
	const (
		tan22 = 0.4142135623730951
		tan67 = 2.414213562373095
	)
	strong := make([]uint8, w*h) // 0 none, 1 weak, 2 strong
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			v := mag[i]
			if float64(v) <= low {
				continue
			}
			ax, ay := math.Abs(float64(gx[i])), math.Abs(float64(gy[i]))
			var n1, n2 float32
			switch {
			case ay <= ax*tan22:
				n1, n2 = mag[i-1], mag[i+1]
			case ay >= ax*tan67:
				n1, n2 = mag[i-w], mag[i+w]
			default:
				if (gx[i] > 0) == (gy[i] > 0) {
					n1, n2 = mag[i-w-1], mag[i+w+1]
				} else {
					n1, n2 = mag[i-w+1], mag[i+w-1]
				}
			}
			if v < n1 || v <= n2 {
				continue
			}
			if float64(v) > high {
				strong[i] = 2
			} else {
				strong[i] = 1
			}
		}
	}

	// hysteresis: grow strong edges through 8-connected weak pixels
	stack := make([]int, 0, 256)
	for i, s := range strong {
		if s == 2 {
			edges[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := cx+dx, cy+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if strong[ni] == 1 && !edges[ni] {
					edges[ni] = true
					stack = append(stack, ni)
				}
			}
		}
	}
	return edges
}

// EdgeDensity returns the fraction of true pixels in an edge plane.
func EdgeDensity(edges []bool) float64 {
	if len(edges) == 0 {
		return 0
	}
	return float64(Count(edges)) / float64(len(edges))
}

// Count returns the number of true pixels.
func Count(b []bool) int {
	n := 0
	for _, v := range b {
		if v {
			n++
		}
	}
	return n
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty planes score 0.
func Jaccard(a, b []bool) float64 {
	var inter, union int
	for i := range a {
		if i >= len(b) {
			break
		}
		if a[i] && b[i] {
			inter++
		}
		if a[i] || b[i] {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
