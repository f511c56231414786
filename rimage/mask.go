package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/image/draw"

	"go.viam.com/foodvolume/utils"
)

// Mask is a row-major grid of booleans; true marks food.
type Mask struct {
	width  int
	height int

	data []bool
}

// NewMask returns an all-background mask.
func NewMask(width, height int) *Mask {
	return &Mask{width: width, height: height, data: make([]bool, width*height)}
}

// NewMaskFromSlice wraps row-major data. The slice is copied.
func NewMaskFromSlice(width, height int, data []bool) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, utils.NewInvalidParameterError("bad mask dimensions (%d,%d)", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("mask data has %d values, expected %dx%d=%d", len(data), width, height, width*height)
	}
	m := NewMask(width, height)
	copy(m.data, data)
	return m, nil
}

// MaskFromImage marks every pixel with non-zero luminance as food.
func MaskFromImage(img image.Image) *Mask {
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			m.Set(x-b.Min.X, y-b.Min.Y, g.Y != 0)
		}
	}
	return m
}

// Width returns the horizontal size.
func (m *Mask) Width() int {
	return m.width
}

// Height returns the vertical size.
func (m *Mask) Height() int {
	return m.height
}

// Bounds returns the rectangle covered by the mask.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// Get returns whether (x, y) is food. Points outside the mask are background.
func (m *Mask) Get(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.data[y*m.width+x]
}

// Set marks (x, y).
func (m *Mask) Set(x, y int, v bool) {
	m.data[y*m.width+x] = v
}

// Data returns the underlying row-major values. It must not be modified.
func (m *Mask) Data() []bool {
	return m.data
}

// Count returns the number of food pixels.
func (m *Mask) Count() int {
	return lo.Count(m.data, true)
}

// Indices returns the row-major indices of all food pixels in ascending order.
func (m *Mask) Indices() []int {
	out := make([]int, 0, m.Count())
	for i, v := range m.data {
		if v {
			out = append(out, i)
		}
	}
	return out
}

// Clone makes a deep copy.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.width, m.height)
	copy(out.data, m.data)
	return out
}

// AndNot returns the pixels set in m but not in other. Both masks must be the same size.
func (m *Mask) AndNot(other *Mask) (*Mask, error) {
	if m.Bounds() != other.Bounds() {
		return nil, errors.Errorf("mask dimensions don't match (%d,%d) != (%d,%d)",
			m.width, m.height, other.width, other.height)
	}
	out := NewMask(m.width, m.height)
	for i := range m.data {
		out.data[i] = m.data[i] && !other.data[i]
	}
	return out, nil
}

// ToImage renders the mask as black and white.
func (m *Mask) ToImage() *image.Gray {
	img := image.NewGray(m.Bounds())
	for i, v := range m.data {
		if v {
			img.Pix[(i/m.width)*img.Stride+i%m.width] = 255
		}
	}
	return img
}

// ResizeMask resamples the mask to width x height with nearest neighbour sampling. This is the
// contract used when a segmentation model works at a different resolution than the depth model.
func ResizeMask(m *Mask, width, height int) (*Mask, error) {
	if width <= 0 || height <= 0 {
		return nil, utils.NewInvalidParameterError("bad mask dimensions (%d,%d)", width, height)
	}
	if width == m.width && height == m.height {
		return m.Clone(), nil
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), m.ToImage(), m.Bounds(), draw.Src, nil)
	return MaskFromImage(dst), nil
}
