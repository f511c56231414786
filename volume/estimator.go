// Package volume measures the volume of food from a depth map, a food mask and camera intrinsics.
package volume

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"golang.org/x/sync/errgroup"

	"go.viam.com/foodvolume/logging"
	"go.viam.com/foodvolume/rimage"
	"go.viam.com/foodvolume/rimage/transform"
	"go.viam.com/foodvolume/utils"
	"go.viam.com/foodvolume/vision/segmentation"
)

// DepthEstimator predicts raw, unscaled depth for an image.
type DepthEstimator interface {
	EstimateDepth(ctx context.Context, img image.Image) (*rimage.DepthMap, error)
}

// Segmenter predicts which pixels of an image are food.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (*rimage.Mask, error)
}

// Estimator runs the full pipeline. It holds no mutable state and is safe for concurrent use
// when its models are.
type Estimator struct {
	depth  DepthEstimator
	seg    Segmenter
	cfg    Config
	logger logging.Logger
}

// NewEstimator validates cfg and returns an estimator using the given models. Either model may
// be nil when only EstimateFromDepth is used.
func NewEstimator(depth DepthEstimator, seg Segmenter, cfg Config, logger logging.Logger) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{depth: depth, seg: seg, cfg: cfg, logger: logger}, nil
}

// Config returns the configuration the estimator was built with.
func (e *Estimator) Config() Config {
	return e.cfg
}

// WithCamera returns an estimator sharing the models of e but describing the camera by cam.
func (e *Estimator) WithCamera(cam transform.CameraConfig) (*Estimator, error) {
	return NewEstimator(e.depth, e.seg, e.cfg.WithCamera(cam), e.logger)
}

// Estimate measures the food in img. The first failing stage aborts the run and names itself in
// the returned error.
func (e *Estimator) Estimate(ctx context.Context, img image.Image) (*Estimate, error) {
	ctx, span := trace.StartSpan(ctx, "foodvolume::volume::Estimate")
	defer span.End()

	if e.depth == nil || e.seg == nil {
		return nil, utils.NewConfigurationError("estimator has no depth or segmentation model")
	}

	raw, err := e.stageDepth(ctx, img)
	if err != nil {
		return nil, err
	}
	mask, err := e.stageSegment(ctx, img)
	if err != nil {
		return nil, err
	}
	return e.EstimateFromDepth(ctx, raw, mask)
}

func (e *Estimator) stageDepth(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
	ctx, span := trace.StartSpan(ctx, "foodvolume::volume::Estimate::depth")
	defer span.End()
	raw, err := e.depth.EstimateDepth(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "depth")
	}
	e.logger.CDebugw(ctx, "depth estimated", "width", raw.Width(), "height", raw.Height())
	return raw, nil
}

func (e *Estimator) stageSegment(ctx context.Context, img image.Image) (*rimage.Mask, error) {
	ctx, span := trace.StartSpan(ctx, "foodvolume::volume::Estimate::segment")
	defer span.End()
	mask, err := e.seg.Segment(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "segment")
	}
	e.logger.CDebugw(ctx, "food segmented", "pixels", mask.Count())
	return mask, nil
}

// EstimateFromDepth runs the pipeline on precomputed raw depth and mask. The depth is rescaled
// and clipped per the configuration. A mask of a different resolution is resized to the depth.
func (e *Estimator) EstimateFromDepth(ctx context.Context, raw *rimage.DepthMap, mask *rimage.Mask) (*Estimate, error) {
	ctx, span := trace.StartSpan(ctx, "foodvolume::volume::EstimateFromDepth")
	defer span.End()

	if raw == nil || mask == nil {
		return nil, utils.NewInvalidParameterError("depth map and mask are required")
	}
	cfg := e.cfg

	factor := cfg.DepthRescaling
	if cfg.RescaleMode == RescaleMedian {
		f, err := rimage.MedianRescaleFactor(raw, cfg.MedianDepth)
		if err != nil {
			return nil, errors.Wrap(err, "rescale")
		}
		factor = f
	}
	depth, err := raw.Rescale(factor, cfg.MinDepth, cfg.MaxDepth)
	if err != nil {
		return nil, errors.Wrap(err, "rescale")
	}
	e.logger.CDebugw(ctx, "depth rescaled", "factor", factor)

	if mask.Width() != depth.Width() || mask.Height() != depth.Height() {
		e.logger.CDebugw(ctx, "resizing mask to depth resolution",
			"from", mask.Bounds().Size(), "to", depth.Bounds().Size())
		if mask, err = rimage.ResizeMask(mask, depth.Width(), depth.Height()); err != nil {
			return nil, errors.Wrap(err, "resize")
		}
	}

	params, err := transform.NewIntrinsics(depth.Width(), depth.Height(), cfg.Camera())
	if err != nil {
		return nil, errors.Wrap(err, "intrinsics")
	}

	_, cloudSpan := trace.StartSpan(ctx, "foodvolume::volume::EstimateFromDepth::pointcloud")
	cloud, err := params.DepthMapToPointCloud(depth)
	cloudSpan.End()
	if err != nil {
		return nil, errors.Wrap(err, "pointcloud")
	}

	_, regionSpan := trace.StartSpan(ctx, "foodvolume::volume::EstimateFromDepth::regions")
	regions, err := segmentation.ExtractRegions(cloud, mask, cfg.Regions())
	regionSpan.End()
	if err != nil {
		return nil, errors.Wrap(err, "regions")
	}
	e.logger.CDebugw(ctx, "regions extracted",
		"components", regions.Components, "food", len(regions.Food), "ring", len(regions.Plane))

	_, integrateSpan := trace.StartSpan(ctx, "foodvolume::volume::EstimateFromDepth::integrate")
	est, err := EstimateFromRegions(cloud, params, regions, cfg)
	integrateSpan.End()
	if err != nil {
		return nil, err
	}
	e.logger.CDebugw(ctx, "volume integrated",
		"plane_inliers", est.PlaneInliers(), "plane_rms", est.PlaneFit.RMS,
		"rejected", est.Rejected, "ml", est.Milliliters())
	return est, nil
}

// EstimateBatch estimates every image with at most Config.Workers running at once. Results are
// in input order; the first error cancels the remaining work.
func (e *Estimator) EstimateBatch(ctx context.Context, imgs []image.Image) ([]*Estimate, error) {
	ctx, span := trace.StartSpan(ctx, "foodvolume::volume::EstimateBatch")
	defer span.End()

	results := make([]*Estimate, len(imgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, img := range imgs {
		i, img := i, img
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			est, err := e.Estimate(gctx, img)
			if err != nil {
				return errors.Wrapf(err, "image %d", i)
			}
			results[i] = est
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
