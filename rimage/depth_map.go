// Package rimage holds the image-space inputs of the estimation pipeline: metric depth maps,
// food masks and the morphology used to derive sampling regions from them.
package rimage

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/foodvolume/utils"
)

// DepthMap is a row-major grid of depths in metres, one value per pixel.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewDepthMapFromSlice wraps row-major data. The slice is copied.
func NewDepthMapFromSlice(width, height int, data []float64) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, utils.NewInvalidParameterError("bad depth map dimensions (%d,%d)", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth data has %d values, expected %dx%d=%d", len(data), width, height, width*height)
	}
	dm := NewEmptyDepthMap(width, height)
	copy(dm.data, data)
	return dm, nil
}

// NewConstantDepthMap returns a depth map filled with d.
func NewConstantDepthMap(width, height int, d float64) *DepthMap {
	dm := NewEmptyDepthMap(width, height)
	for i := range dm.data {
		dm.data[i] = d
	}
	return dm
}

// Width returns the horizontal size.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covered by the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains reports whether (x, y) is inside the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Set sets the depth at (x, y).
func (dm *DepthMap) Set(x, y int, d float64) {
	dm.data[y*dm.width+x] = d
}

// Data returns the underlying row-major values. It must not be modified.
func (dm *DepthMap) Data() []float64 {
	return dm.data
}

// Clone makes a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	copy(out.data, dm.data)
	return out
}

// MinMax returns the smallest and largest finite values in the map.
func (dm *DepthMap) MinMax() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range dm.data {
		if !utils.IsFinite(d) {
			continue
		}
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// Scale returns a copy with every value multiplied by k.
func (dm *DepthMap) Scale(k float64) *DepthMap {
	out := dm.Clone()
	for i := range out.data {
		out.data[i] *= k
	}
	return out
}
