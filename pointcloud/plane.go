package pointcloud

import (
	"github.com/golang/geo/r3"
)

// Plane is the set of points p with Normal·p = Offset. Normal has unit length.
type Plane struct {
	Normal r3.Vector
	Offset float64
}

// NewPlane returns the plane through point with the given normal. The normal is normalized.
func NewPlane(normal, point r3.Vector) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, Offset: n.Dot(point)}
}

// Distance returns the signed distance of pt to the plane, positive on the side the normal
// points to.
func (p Plane) Distance(pt r3.Vector) float64 {
	return p.Normal.Dot(pt) - p.Offset
}

// Project returns the orthogonal projection of pt onto the plane.
func (p Plane) Project(pt r3.Vector) r3.Vector {
	return pt.Sub(p.Normal.Mul(p.Distance(pt)))
}

// Equation returns the plane equation [0]x + [1]y + [2]z + [3] = 0.
func (p Plane) Equation() []float64 {
	return []float64{p.Normal.X, p.Normal.Y, p.Normal.Z, -p.Offset}
}

// Flip returns the same plane with the opposite normal.
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Mul(-1), Offset: -p.Offset}
}

// OrientTowards returns the plane with its normal chosen so that viewpoint lies on the positive
// side. A viewpoint on the plane leaves the orientation unchanged.
func (p Plane) OrientTowards(viewpoint r3.Vector) Plane {
	if p.Distance(viewpoint) < 0 {
		return p.Flip()
	}
	return p
}
