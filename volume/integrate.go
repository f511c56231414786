package volume

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/foodvolume/pointcloud"
	"go.viam.com/foodvolume/rimage/transform"
)

// Unit conversions from the cubic metres used internally.
const (
	CubicMetresToLiters      = 1e3
	CubicMetresToMilliliters = 1e6
)

// HeightMap returns the signed height of each food point above the plane, in the order of food.
// Points below the plane have negative heights.
func HeightMap(cloud *pointcloud.Organized, plane pointcloud.Plane, food []int) []float64 {
	heights := make([]float64, len(food))
	for j, i := range food {
		heights[j] = plane.Distance(cloud.Point(i))
	}
	return heights
}

// RejectSpikes zeroes heights above maxHeight. A maxHeight of 0 keeps every height.
func RejectSpikes(heights []float64, maxHeight float64) (kept []float64, rejected int) {
	kept = make([]float64, len(heights))
	copy(kept, heights)
	if maxHeight <= 0 {
		return kept, 0
	}
	for i, h := range kept {
		if h > maxHeight {
			kept[i] = 0
			rejected++
		}
	}
	return kept, rejected
}

// Integrate sums max(h, 0)·area over the food pixels. It is linear in both heights and areas.
func Integrate(heights, areas []float64) (float64, error) {
	if len(heights) != len(areas) {
		return 0, errors.Errorf("got %d heights but %d footprint areas", len(heights), len(areas))
	}
	var v float64
	for i, h := range heights {
		if h > 0 {
			v += h * areas[i]
		}
	}
	return v, nil
}

// FootprintAreas returns the area on the reference plane covered by each food pixel, in the
// order of food. The area is recomputed per point since pixel spacing grows with depth.
func FootprintAreas(
	cloud *pointcloud.Organized,
	params *transform.PinholeCameraIntrinsics,
	plane pointcloud.Plane,
	food []int,
	model FootprintModel,
) ([]float64, error) {
	areas := make([]float64, len(food))
	switch model {
	case FootprintPinhole:
		for j, i := range food {
			areas[j] = params.PixelArea(cloud.Point(i).Z)
		}
	case FootprintPlaneProjected:
		isFood := make([]bool, cloud.Size())
		for _, i := range food {
			isFood[i] = true
		}
		for j, i := range food {
			areas[j] = projectedArea(cloud, params, plane, isFood, i)
		}
	default:
		return nil, errors.Errorf("unknown footprint model %q", model)
	}
	return areas, nil
}

// projectedArea measures |∂Q/∂u × ∂Q/∂v| where Q is the orthogonal projection of the point of a
// pixel onto the plane. Derivatives use central differences over food neighbours and fall back
// to one-sided differences at the region edge. A pixel with no food neighbour along an axis
// uses the pinhole area.
func projectedArea(
	cloud *pointcloud.Organized,
	params *transform.PinholeCameraIntrinsics,
	plane pointcloud.Plane,
	isFood []bool,
	i int,
) float64 {
	px := cloud.Pixel(i)
	usable := func(x, y int) bool {
		return cloud.Contains(x, y) && isFood[cloud.Index(x, y)]
	}
	project := func(x, y int) r3.Vector {
		return plane.Project(cloud.At(x, y))
	}
	derivative := func(dx, dy int) (r3.Vector, bool) {
		prev := usable(px.X-dx, px.Y-dy)
		next := usable(px.X+dx, px.Y+dy)
		switch {
		case prev && next:
			return project(px.X+dx, px.Y+dy).Sub(project(px.X-dx, px.Y-dy)).Mul(0.5), true
		case next:
			return project(px.X+dx, px.Y+dy).Sub(project(px.X, px.Y)), true
		case prev:
			return project(px.X, px.Y).Sub(project(px.X-dx, px.Y-dy)), true
		default:
			return r3.Vector{}, false
		}
	}

	du, okU := derivative(1, 0)
	dv, okV := derivative(0, 1)
	if !okU || !okV {
		return params.PixelArea(cloud.Point(i).Z)
	}
	return du.Cross(dv).Norm()
}
