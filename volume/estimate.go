package volume

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/foodvolume/pointcloud"
	"go.viam.com/foodvolume/rimage/transform"
	"go.viam.com/foodvolume/vision/segmentation"
)

// Estimate is the outcome of a single measurement. It is not modified once returned.
type Estimate struct {
	// Volume in cubic metres.
	Volume float64
	Plane  pointcloud.Plane
	// PlaneFit carries the inliers and residual of the reference plane.
	PlaneFit *segmentation.PlaneFit
	Regions  *segmentation.Regions
	// Cloud is the labelled point cloud the estimate was computed from.
	Cloud      *pointcloud.Organized
	Intrinsics *transform.PinholeCameraIntrinsics
	// Heights holds the height above the plane for each food pixel, in the order of Regions.Food.
	Heights []float64
	// Areas holds the footprint of each food pixel, in the order of Regions.Food.
	Areas []float64
	// Rejected is the number of food pixels dropped as height spikes.
	Rejected int
}

// Liters returns the volume in litres.
func (e *Estimate) Liters() float64 {
	return e.Volume * CubicMetresToLiters
}

// Milliliters returns the volume in millilitres, which are cubic centimetres.
func (e *Estimate) Milliliters() float64 {
	return e.Volume * CubicMetresToMilliliters
}

// FoodPixels is the number of pixels integrated.
func (e *Estimate) FoodPixels() int {
	return len(e.Regions.Food)
}

// PlanePixels is the number of ring pixels offered to the plane fit.
func (e *Estimate) PlanePixels() int {
	return len(e.Regions.Plane)
}

// PlaneInliers is the number of ring pixels the plane was finally fit to.
func (e *Estimate) PlaneInliers() int {
	return len(e.PlaneFit.Inliers)
}

// HeightGrid spreads Heights over the full image in row-major order. Pixels outside the food
// region and below the plane are 0.
func (e *Estimate) HeightGrid() []float64 {
	grid := make([]float64, e.Cloud.Size())
	for j, i := range e.Regions.Food {
		grid[i] = math.Max(e.Heights[j], 0)
	}
	return grid
}

// EstimateFromRegions fits the reference plane to the ring around the food and integrates the
// food height above it. The cloud must already carry the labels of regions.
func EstimateFromRegions(
	cloud *pointcloud.Organized,
	params *transform.PinholeCameraIntrinsics,
	regions *segmentation.Regions,
	cfg Config,
) (*Estimate, error) {
	fit, err := segmentation.FitPlane(cloud.Points(regions.Plane), cfg.PlaneFit)
	if err != nil {
		return nil, errors.Wrap(err, "plane")
	}
	// map ring-local inlier indices back to cloud indices
	fit.Inliers = lo.Map(fit.Inliers, func(i, _ int) int {
		return regions.Plane[i]
	})

	heights, rejected := RejectSpikes(HeightMap(cloud, fit.Plane, regions.Food), cfg.MaxHeight)
	areas, err := FootprintAreas(cloud, params, fit.Plane, regions.Food, cfg.FootprintModel)
	if err != nil {
		return nil, errors.Wrap(err, "integrate")
	}
	v, err := Integrate(heights, areas)
	if err != nil {
		return nil, errors.Wrap(err, "integrate")
	}
	return &Estimate{
		Volume:     v,
		Plane:      fit.Plane,
		PlaneFit:   fit,
		Regions:    regions,
		Cloud:      cloud,
		Intrinsics: params,
		Heights:    heights,
		Areas:      areas,
		Rejected:   rejected,
	}, nil
}
