package rimage

import (
	"image"
)

// Components is an 8-connected labelling of a mask. Labels start at 1; 0 is background.
// Labels are assigned in row-major order of each component's first pixel.
type Components struct {
	Labels []int
	// Sizes[i] is the pixel count of label i+1.
	Sizes []int
}

// Count returns the number of components.
func (c *Components) Count() int {
	return len(c.Sizes)
}

var neighbours8 = []image.Point{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// ConnectedComponents labels the 8-connected foreground regions of the mask.
func ConnectedComponents(m *Mask) *Components {
	labels := make([]int, len(m.data))
	var sizes []int
	stack := make([]int, 0, 64)
	for start, v := range m.data {
		if !v || labels[start] != 0 {
			continue
		}
		label := len(sizes) + 1
		size := 0
		labels[start] = label
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x, y := idx%m.width, idx/m.width
			for _, n := range neighbours8 {
				nx, ny := x+n.X, y+n.Y
				if !m.Get(nx, ny) {
					continue
				}
				nIdx := ny*m.width + nx
				if labels[nIdx] == 0 {
					labels[nIdx] = label
					stack = append(stack, nIdx)
				}
			}
		}
		sizes = append(sizes, size)
	}
	return &Components{Labels: labels, Sizes: sizes}
}

// Component returns the mask of a single label.
func (c *Components) Component(m *Mask, label int) *Mask {
	out := NewMask(m.width, m.height)
	for i, l := range c.Labels {
		out.data[i] = l == label
	}
	return out
}

// Largest returns the label with the most pixels. Ties go to the component found first in
// row-major order. It returns 0 when there is no foreground.
func (c *Components) Largest() int {
	best, bestSize := 0, 0
	for i, size := range c.Sizes {
		if size > bestSize {
			best, bestSize = i+1, size
		}
	}
	return best
}

// LargestComponent returns the mask of the largest 8-connected food region, along with the
// number of components found. The mask is empty if m has no foreground.
func LargestComponent(m *Mask) (*Mask, int) {
	comps := ConnectedComponents(m)
	largest := comps.Largest()
	if largest == 0 {
		return NewMask(m.width, m.height), 0
	}
	return comps.Component(m, largest), comps.Count()
}
