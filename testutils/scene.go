// Package testutils builds synthetic scenes and stand-in models for tests.
package testutils

import (
	"context"
	"image"
	"math"
	"sync/atomic"

	"go.viam.com/foodvolume/rimage"
)

// Scene is a depth map of a tabletop seen by a camera looking straight down at it, together
// with the food mask.
type Scene struct {
	Depth *rimage.DepthMap
	Mask  *rimage.Mask
	// Focal is the focal length in pixels; the principal point is the image centre.
	Focal float64
	// TableDepth is the distance from the camera to the table.
	TableDepth float64
}

// NewTableScene returns an empty table at tableDepth.
func NewTableScene(width, height int, focal, tableDepth float64) *Scene {
	return &Scene{
		Depth:      rimage.NewConstantDepthMap(width, height, tableDepth),
		Mask:       rimage.NewMask(width, height),
		Focal:      focal,
		TableDepth: tableDepth,
	}
}

// ray returns the direction through pixel (x, y) with unit z.
func (s *Scene) ray(x, y int) (float64, float64) {
	cx := float64(s.Depth.Width()) / 2
	cy := float64(s.Depth.Height()) / 2
	return (float64(x) - cx) / s.Focal, (float64(y) - cy) / s.Focal
}

// AddHemisphere places a half ball of radius r on the table, centred on the optical axis.
// Every pixel whose ray hits the ball is food and gets the depth of the nearest hit.
func (s *Scene) AddHemisphere(r float64) {
	z0 := s.TableDepth
	for y := 0; y < s.Depth.Height(); y++ {
		for x := 0; x < s.Depth.Width(); x++ {
			a, b := s.ray(x, y)
			// |t*(a,b,1) - (0,0,z0)|^2 = r^2
			qa := a*a + b*b + 1
			qb := -2 * z0
			qc := z0*z0 - r*r
			disc := qb*qb - 4*qa*qc
			if disc < 0 {
				continue
			}
			t := (-qb - math.Sqrt(disc)) / (2 * qa)
			if t >= z0 {
				continue
			}
			s.Depth.Set(x, y, t)
			s.Mask.Set(x, y, true)
		}
	}
}

// AddBox raises the pixels of rect by height above the table and marks them as food. A negative
// height sinks them below the table instead.
func (s *Scene) AddBox(rect image.Rectangle, height float64) {
	rect = rect.Intersect(s.Depth.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			s.Depth.Set(x, y, s.TableDepth-height)
			s.Mask.Set(x, y, true)
		}
	}
}

// StaticDepth answers every image with the same depth map or error.
type StaticDepth struct {
	Depth *rimage.DepthMap
	Err   error
	Calls atomic.Int64
}

// EstimateDepth returns a copy of the stored depth.
func (sd *StaticDepth) EstimateDepth(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
	sd.Calls.Add(1)
	if sd.Err != nil {
		return nil, sd.Err
	}
	return sd.Depth.Clone(), nil
}

// StaticSegmenter answers every image with the same mask or error.
type StaticSegmenter struct {
	Mask  *rimage.Mask
	Err   error
	Calls atomic.Int64
}

// Segment returns a copy of the stored mask.
func (ss *StaticSegmenter) Segment(ctx context.Context, img image.Image) (*rimage.Mask, error) {
	ss.Calls.Add(1)
	if ss.Err != nil {
		return nil, ss.Err
	}
	return ss.Mask.Clone(), nil
}
