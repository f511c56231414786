package rimage

import (
	"github.com/montanaflynn/stats"

	"go.viam.com/foodvolume/utils"
)

// CheckDepthBounds validates a clipping interval.
func CheckDepthBounds(minDepth, maxDepth float64) error {
	if !utils.IsFinite(minDepth) || minDepth <= 0 {
		return utils.NewInvalidParameterError("min_depth must be positive, got %v", minDepth)
	}
	if !utils.IsFinite(maxDepth) || maxDepth <= minDepth {
		return utils.NewInvalidParameterError("max_depth (%v) must be greater than min_depth (%v)", maxDepth, minDepth)
	}
	return nil
}

// Rescale maps raw network depth to metric depth: clip(raw*factor, minDepth, maxDepth).
// The factor calibrates the unknown scale of a self-supervised depth network and belongs with
// the trained model. Values landing on the bounds are kept, not discarded. NaN or infinite raw
// values are rejected.
func (dm *DepthMap) Rescale(factor, minDepth, maxDepth float64) (*DepthMap, error) {
	if !utils.IsFinite(factor) || factor <= 0 {
		return nil, utils.NewInvalidParameterError("depth rescaling factor must be positive, got %v", factor)
	}
	if err := CheckDepthBounds(minDepth, maxDepth); err != nil {
		return nil, err
	}
	out := NewEmptyDepthMap(dm.width, dm.height)
	for i, raw := range dm.data {
		if !utils.IsFinite(raw) {
			x, y := i%dm.width, i/dm.width
			return nil, utils.NewInvalidParameterError("raw depth at (%d,%d) is %v", x, y, raw)
		}
		out.data[i] = utils.Clamp(raw*factor, minDepth, maxDepth)
	}
	return out, nil
}

// Clip limits every value to [minDepth, maxDepth]. Clip is idempotent.
func (dm *DepthMap) Clip(minDepth, maxDepth float64) (*DepthMap, error) {
	return dm.Rescale(1, minDepth, maxDepth)
}

// MedianRescaleFactor returns the factor that moves the median of the raw map onto
// medianDepth. Non-positive and non-finite raw values do not take part.
func MedianRescaleFactor(raw *DepthMap, medianDepth float64) (float64, error) {
	if !utils.IsFinite(medianDepth) || medianDepth <= 0 {
		return 0, utils.NewInvalidParameterError("median depth must be positive, got %v", medianDepth)
	}
	valid := make(stats.Float64Data, 0, len(raw.data))
	for _, d := range raw.data {
		if utils.IsFinite(d) && d > 0 {
			valid = append(valid, d)
		}
	}
	if len(valid) == 0 {
		return 0, utils.NewInsufficientDataError("no positive depth values to take a median of")
	}
	median, err := valid.Median()
	if err != nil {
		return 0, err
	}
	return medianDepth / median, nil
}

// DisparityToDepth converts a normalised disparity map (0 = far, 1 = near, typically a sigmoid
// output) into depth bounded by [minDepth, maxDepth]:
//
//	depth = 1 / (1/maxDepth + (1/minDepth - 1/maxDepth) * disp)
func DisparityToDepth(disp *DepthMap, minDepth, maxDepth float64) (*DepthMap, error) {
	if err := CheckDepthBounds(minDepth, maxDepth); err != nil {
		return nil, err
	}
	minDisp := 1 / maxDepth
	maxDisp := 1 / minDepth
	out := NewEmptyDepthMap(disp.width, disp.height)
	for i, v := range disp.data {
		if !utils.IsFinite(v) {
			return nil, utils.NewInvalidParameterError("disparity at index %d is %v", i, v)
		}
		v = utils.Clamp(v, 0, 1)
		out.data[i] = 1 / (minDisp + (maxDisp-minDisp)*v)
	}
	return out, nil
}
