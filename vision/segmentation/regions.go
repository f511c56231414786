// Package segmentation splits an organized point cloud into the food region and its supporting
// surface, and fits the reference plane to the latter.
package segmentation

import (
	"github.com/pkg/errors"

	"go.viam.com/foodvolume/pointcloud"
	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/utils"
)

// RegionConfig controls how the food region and the border ring are derived from the mask.
type RegionConfig struct {
	// RelaxationRadius is how far, in pixels, beyond the food boundary the border ring reaches.
	RelaxationRadius int `json:"relaxation_radius"`
	// ErosionRadius shrinks the food region before measuring it. 0 disables erosion.
	ErosionRadius int `json:"erosion_radius"`
}

// Validate checks the radii.
func (cfg RegionConfig) Validate() error {
	if cfg.RelaxationRadius < 1 {
		return utils.NewInvalidParameterError("relaxation radius must be at least 1 pixel, got %d", cfg.RelaxationRadius)
	}
	if cfg.ErosionRadius < 0 {
		return utils.NewInvalidParameterError("erosion radius cannot be negative, got %d", cfg.ErosionRadius)
	}
	return nil
}

// Regions are disjoint sets of point indices into an organized cloud, in ascending order.
type Regions struct {
	Food  []int
	Plane []int
	// Components is the number of 8-connected food regions found in the mask.
	Components int
}

// ExtractRegions selects the food points and the ring of supporting-surface points around them.
//
// The food region is the largest 8-connected component of the mask; ties go to the component
// reached first in row-major order. The ring is the food region dilated by the relaxation radius
// minus every foreground pixel of the mask, so other food never feeds the plane fit. The cloud
// points are labelled accordingly.
func ExtractRegions(cloud *pointcloud.Organized, mask *rimage.Mask, cfg RegionConfig) (*Regions, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cloud.Width() != mask.Width() || cloud.Height() != mask.Height() {
		return nil, utils.NewInvalidParameterError("mask and point cloud dimensions don't match Mask(%d,%d) != Cloud(%d,%d)",
			mask.Width(), mask.Height(), cloud.Width(), cloud.Height())
	}
	if mask.Count() == 0 {
		return nil, utils.NewEmptyMaskError("mask has no food pixels")
	}

	food, components := rimage.LargestComponent(mask)
	if cfg.ErosionRadius > 0 {
		eroded, err := rimage.ErodeDisk(food, cfg.ErosionRadius)
		if err != nil {
			return nil, err
		}
		if eroded.Count() == 0 {
			return nil, utils.NewEmptyMaskError("food region of %d pixels vanished after erosion by %d", food.Count(), cfg.ErosionRadius)
		}
		food = eroded
	}

	dilated, err := rimage.DilateDisk(food, cfg.RelaxationRadius)
	if err != nil {
		return nil, err
	}
	ring, err := dilated.AndNot(mask)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build border ring")
	}

	regions := &Regions{
		Food:       food.Indices(),
		Plane:      ring.Indices(),
		Components: components,
	}
	cloud.SetLabel(pointcloud.LabelFood, regions.Food...)
	cloud.SetLabel(pointcloud.LabelBorder, regions.Plane...)
	return regions, nil
}
