package mask

// OtsuThreshold returns the level in [0, 1] that maximizes the between-class
// variance of a 256-bin histogram.
func OtsuThreshold(m *Mask) float32 {
	if len(m.Pix) == 0 {
		return 0.5
	}
	const bins = 256
	var histogram [bins]int
	for _, v := range m.Pix {
		histogram[ToByte(v)]++
	}

	total := len(m.Pix)
	var sumAll float64
	for i, c := range histogram {
		sumAll += float64(i) * float64(c)
	}

	var sumB, maxVariance float64
	best, wB := 0, 0
	for t := 0; t < bins; t++ {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (sumAll - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return float32(best) / 255
}

// AdaptiveThreshold marks pixels darker than their blockSize neighbourhood mean
// minus c as foreground (inverted binary, the usual product-on-light-background case).
func AdaptiveThreshold(m *Mask, blockSize int, c float32) *Mask {
	mean := BoxBlur(m, blockSize)
	out := New(m.Width, m.Height)
	for i, v := range m.Pix {
		if v < mean.Pix[i]-c {
			out.Pix[i] = 1
		}
	}
	return out
}
