package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"
)

// NewVector convenience method for creating a vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// Data describes what is attached to a single point besides its position.
type Data interface {
	// HasColor returns whether or not this point is colored.
	HasColor() bool

	// RGB255 returns, if colored, the RGB components of the color.
	RGB255() (uint8, uint8, uint8)

	// HasLabel returns whether the point was classified.
	HasLabel() bool

	// Label returns the classification, LabelNone when unlabelled.
	Label() Label
}

type pointData struct {
	c        color.NRGBA
	hasColor bool

	label    Label
	hasLabel bool
}

// NewBasicData returns a point that is solely positionally based.
func NewBasicData() Data {
	return &pointData{}
}

// NewColoredData returns a point that has both position and color.
func NewColoredData(c color.NRGBA) Data {
	return &pointData{c: c, hasColor: true}
}

// NewLabelledData returns a point carrying a label, colored with the label's export color.
func NewLabelledData(l Label) Data {
	return &pointData{c: labelColors[l], hasColor: true, label: l, hasLabel: true}
}

func (d *pointData) HasColor() bool {
	return d.hasColor
}

func (d *pointData) RGB255() (uint8, uint8, uint8) {
	return d.c.R, d.c.G, d.c.B
}

func (d *pointData) HasLabel() bool {
	return d.hasLabel
}

func (d *pointData) Label() Label {
	return d.label
}
