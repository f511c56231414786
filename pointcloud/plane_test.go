package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPlane(t *testing.T) {
	// z = 1 seen from the origin
	p := NewPlane(r3.Vector{X: 0, Y: 0, Z: 2}, r3.Vector{X: 5, Y: -3, Z: 1})
	test.That(t, p.Normal, test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: 1})
	test.That(t, p.Offset, test.ShouldEqual, 1.)
	test.That(t, p.Distance(r3.Vector{X: 1, Y: 1, Z: 0.75}), test.ShouldAlmostEqual, -0.25)
	test.That(t, p.Project(r3.Vector{X: 1, Y: 2, Z: 3}), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 1})
	test.That(t, p.Equation(), test.ShouldResemble, []float64{0, 0, 1, -1})

	oriented := p.OrientTowards(r3.Vector{})
	test.That(t, oriented.Normal, test.ShouldResemble, r3.Vector{X: 0, Y: 0, Z: -1})
	test.That(t, oriented.Offset, test.ShouldEqual, -1.)
	test.That(t, oriented.Distance(r3.Vector{}), test.ShouldBeGreaterThan, 0)
	// a point between the camera and the plane is above it
	test.That(t, oriented.Distance(r3.Vector{X: 0, Y: 0, Z: 0.9}), test.ShouldAlmostEqual, 0.1)

	test.That(t, oriented.OrientTowards(r3.Vector{}), test.ShouldResemble, oriented)
	test.That(t, p.OrientTowards(r3.Vector{X: 0, Y: 0, Z: 1}), test.ShouldResemble, p)
}
