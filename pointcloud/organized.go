package pointcloud

import (
	"image"
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Label classifies a point of an organized cloud.
type Label uint8

const (
	// LabelNone marks points that take no part in the measurement.
	LabelNone Label = iota
	// LabelFood marks points of the measured food region.
	LabelFood
	// LabelBorder marks points of the ring around the food used to fit the reference plane.
	LabelBorder
)

func (l Label) String() string {
	switch l {
	case LabelNone:
		return "none"
	case LabelFood:
		return "food"
	case LabelBorder:
		return "border"
	default:
		return "unknown"
	}
}

// labelColors are used when exporting labelled clouds.
var labelColors = map[Label]color.NRGBA{
	LabelNone:   {R: 128, G: 128, B: 128, A: 255},
	LabelFood:   {R: 255, G: 64, B: 0, A: 255},
	LabelBorder: {R: 0, G: 160, B: 255, A: 255},
}

// Organized is a dense point cloud with one point per pixel, stored in row-major order, so the
// point of pixel (x, y) has index y*width+x.
type Organized struct {
	width  int
	height int

	points []r3.Vector
	labels []Label
	meta   MetaData
}

// NewOrganized wraps row-major points of a width x height image. The slice is not copied.
func NewOrganized(width, height int, points []r3.Vector) (*Organized, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad organized cloud dimensions (%d,%d)", width, height)
	}
	if len(points) != width*height {
		return nil, errors.Errorf("organized cloud has %d points, expected %dx%d=%d", len(points), width, height, width*height)
	}
	pc := &Organized{
		width:  width,
		height: height,
		points: points,
		labels: make([]Label, len(points)),
		meta:   NewMetaData(),
	}
	for _, p := range points {
		pc.meta.Merge(p, nil)
	}
	return pc, nil
}

// Width returns the horizontal size of the source image.
func (pc *Organized) Width() int {
	return pc.width
}

// Height returns the vertical size of the source image.
func (pc *Organized) Height() int {
	return pc.height
}

// Size returns the number of points.
func (pc *Organized) Size() int {
	return len(pc.points)
}

// MetaData returns the bounds of the cloud. Every point carries its label.
func (pc *Organized) MetaData() MetaData {
	meta := pc.meta
	meta.HasColor = true
	meta.HasLabel = true
	return meta
}

// Index returns the point index of pixel (x, y).
func (pc *Organized) Index(x, y int) int {
	return y*pc.width + x
}

// Pixel returns the pixel of point index i.
func (pc *Organized) Pixel(i int) image.Point {
	return image.Point{X: i % pc.width, Y: i / pc.width}
}

// Contains reports whether (x, y) is inside the source image.
func (pc *Organized) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < pc.width && y < pc.height
}

// At returns the point of pixel (x, y).
func (pc *Organized) At(x, y int) r3.Vector {
	return pc.points[y*pc.width+x]
}

// Point returns the point with index i.
func (pc *Organized) Point(i int) r3.Vector {
	return pc.points[i]
}

// Points returns the points at the given indices.
func (pc *Organized) Points(indices []int) []r3.Vector {
	out := make([]r3.Vector, len(indices))
	for j, i := range indices {
		out[j] = pc.points[i]
	}
	return out
}

// Label returns the label of point i.
func (pc *Organized) Label(i int) Label {
	return pc.labels[i]
}

// SetLabel labels every given index.
func (pc *Organized) SetLabel(l Label, indices ...int) {
	for _, i := range indices {
		pc.labels[i] = l
	}
}

// Labelled returns the indices with the given label in ascending order.
func (pc *Organized) Labelled(l Label) []int {
	var out []int
	for i, pl := range pc.labels {
		if pl == l {
			out = append(out, i)
		}
	}
	return out
}

// Iterate walks the points row by row. With numBatches > 0 only the rows with
// y%numBatches == myBatch are visited.
func (pc *Organized) Iterate(numBatches, myBatch int, fn func(p r3.Vector, d Data) bool) {
	for y := 0; y < pc.height; y++ {
		if numBatches > 0 && y%numBatches != myBatch {
			continue
		}
		for x := 0; x < pc.width; x++ {
			i := y*pc.width + x
			if !fn(pc.points[i], NewLabelledData(pc.labels[i])) {
				return
			}
		}
	}
}

// Subset returns an unordered cloud holding the points with the given label.
func (pc *Organized) Subset(l Label) *BasicPointCloud {
	out := NewWithPrealloc(0)
	for i, p := range pc.points {
		if pc.labels[i] == l {
			out.Set(p, NewLabelledData(l))
		}
	}
	return out
}
