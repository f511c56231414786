package ml

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/foodvolume/rimage"
)

// DepthModel turns the output of a monocular depth network into a raw depth map.
type DepthModel struct {
	Model Model
	// InputWidth and InputHeight are the resolution the network was trained at.
	InputWidth  int
	InputHeight int
	InputName   string
	// OutputName selects the depth output. Empty picks the only output.
	OutputName string
	// Disparity marks outputs that are normalised disparity in [0, 1], converted to depth
	// bounded by MinDepth and MaxDepth.
	Disparity bool
	MinDepth  float64
	MaxDepth  float64
}

// EstimateDepth runs the network on img. The depth map has the network's output resolution and
// is not yet metrically scaled.
func (dm *DepthModel) EstimateDepth(ctx context.Context, img image.Image) (*rimage.DepthMap, error) {
	in, err := ImageToTensor(img, dm.InputWidth, dm.InputHeight)
	if err != nil {
		return nil, err
	}
	name := dm.InputName
	if name == "" {
		name = DefaultInputName
	}
	out, err := dm.Model.Infer(ctx, Tensors{name: in})
	if err != nil {
		return nil, errors.Wrap(err, "depth model inference failed")
	}
	width, height, data, err := outputGrid(out, dm.OutputName)
	if err != nil {
		return nil, err
	}
	depth, err := rimage.NewDepthMapFromSlice(width, height, data)
	if err != nil {
		return nil, err
	}
	if dm.Disparity {
		return rimage.DisparityToDepth(depth, dm.MinDepth, dm.MaxDepth)
	}
	return depth, nil
}
