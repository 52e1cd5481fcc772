package mask

import "image"

// Component summarizes one connected region of a binary plane.
type Component struct {
	Label int
	Area  int
	MinX  int
	MinY  int
	MaxX  int
	MaxY  int
	// TouchesBorder is true when any pixel lies on the image edge.
	TouchesBorder bool
}

// Rect returns the component bounding box (max exclusive).
func (c Component) Rect() image.Rectangle {
	return image.Rect(c.MinX, c.MinY, c.MaxX+1, c.MaxY+1)
}

// ConnectedComponents labels 8-connected true regions. labels holds 0 for
// background and i+1 for pixels of comps[i].
func ConnectedComponents(b []bool, w, h int) (comps []Component, labels []int) {
	labels = make([]int, w*h)
	queue := make([]int, 0, 256)
	next := 1

	for start, on := range b {
		if !on || labels[start] != 0 {
			continue
		}
		sx, sy := start%w, start/w
		c := Component{Label: next, MinX: sx, MinY: sy, MaxX: sx, MaxY: sy}
		labels[start] = next
		queue = append(queue[:0], start)

		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			cx, cy := i%w, i/w
			c.Area++
			c.MinX, c.MaxX = min(c.MinX, cx), max(c.MaxX, cx)
			c.MinY, c.MaxY = min(c.MinY, cy), max(c.MaxY, cy)
			if cx == 0 || cy == 0 || cx == w-1 || cy == h-1 {
				c.TouchesBorder = true
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := cx+dx, cy+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if b[ni] && labels[ni] == 0 {
						labels[ni] = next
						queue = append(queue, ni)
					}
				}
			}
		}
		comps = append(comps, c)
		next++
	}
	return comps, labels
}

// FillHoles sets every false region that does not touch the border to true.
func FillHoles(b []bool, w, h int) []bool {
	inv := make([]bool, len(b))
	for i, v := range b {
		inv[i] = !v
	}
	comps, labels := ConnectedComponents(inv, w, h)
	out := make([]bool, len(b))
	copy(out, b)
	for i, l := range labels {
		if l > 0 && !comps[l-1].TouchesBorder {
			out[i] = true
		}
	}
	return out
}

// KeepComponents returns a plane holding only the components for which keep returns true.
func KeepComponents(b []bool, w, h int, keep func(Component) bool) []bool {
	comps, labels := ConnectedComponents(b, w, h)
	out := make([]bool, len(b))
	for i, l := range labels {
		if l > 0 && keep(comps[l-1]) {
			out[i] = true
		}
	}
	return out
}

// Largest returns the component with the greatest area and false when there is none.
func Largest(comps []Component) (Component, bool) {
	best := -1
	for i, c := range comps {
		if best < 0 || c.Area > comps[best].Area {
			best = i
		}
	}
	if best < 0 {
		return Component{}, false
	}
	return comps[best], true
}
