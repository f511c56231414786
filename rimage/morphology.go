package rimage

import (
	"image"

	"go.viam.com/foodvolume/utils"
)

// diskOffsets returns the offsets (dx, dy) with dx²+dy² <= radius².
func diskOffsets(radius int) []image.Point {
	offsets := make([]image.Point, 0, (2*radius+1)*(2*radius+1))
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				offsets = append(offsets, image.Point{dx, dy})
			}
		}
	}
	return offsets
}

// isBoundary reports whether a set pixel has a 4-neighbour that is unset or off the grid.
func (m *Mask) isBoundary(x, y int) bool {
	return !m.Get(x-1, y) || !m.Get(x+1, y) || !m.Get(x, y-1) || !m.Get(x, y+1)
}

// DilateDisk grows the mask by a Euclidean disk of the given radius. A radius of 0 returns a
// copy.
func DilateDisk(m *Mask, radius int) (*Mask, error) {
	if radius < 0 {
		return nil, utils.NewInvalidParameterError("dilation radius cannot be negative, got %d", radius)
	}
	out := m.Clone()
	if radius == 0 {
		return out, nil
	}
	offsets := diskOffsets(radius)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			// interior pixels cannot reach further than the boundary does
			if !m.Get(x, y) || !m.isBoundary(x, y) {
				continue
			}
			for _, o := range offsets {
				px, py := x+o.X, y+o.Y
				if px >= 0 && py >= 0 && px < m.width && py < m.height {
					out.data[py*m.width+px] = true
				}
			}
		}
	}
	return out, nil
}

// ErodeDisk shrinks the mask by a Euclidean disk of the given radius. Pixels off the grid count
// as background, so foreground touching the image edge is eroded there too.
func ErodeDisk(m *Mask, radius int) (*Mask, error) {
	if radius < 0 {
		return nil, utils.NewInvalidParameterError("erosion radius cannot be negative, got %d", radius)
	}
	out := m.Clone()
	if radius == 0 {
		return out, nil
	}
	offsets := diskOffsets(radius)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if !m.Get(x, y) {
				continue
			}
			for _, o := range offsets {
				if !m.Get(x+o.X, y+o.Y) {
					out.data[y*m.width+x] = false
					break
				}
			}
		}
	}
	return out, nil
}
