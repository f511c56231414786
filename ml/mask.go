package ml

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"go.viam.com/foodvolume/rimage"
)

// DefaultMaskThreshold is the food probability above which a pixel counts as food.
const DefaultMaskThreshold = 0.5

// MaskModel turns the output of a segmentation network into a food mask.
type MaskModel struct {
	Model       Model
	InputWidth  int
	InputHeight int
	InputName   string
	OutputName  string
	// Threshold on the food probability. 0 uses DefaultMaskThreshold.
	Threshold float64
}

// Segment runs the network on img. Outputs outside [0, 1] are treated as logits.
func (mm *MaskModel) Segment(ctx context.Context, img image.Image) (*rimage.Mask, error) {
	in, err := ImageToTensor(img, mm.InputWidth, mm.InputHeight)
	if err != nil {
		return nil, err
	}
	name := mm.InputName
	if name == "" {
		name = DefaultInputName
	}
	out, err := mm.Model.Infer(ctx, Tensors{name: in})
	if err != nil {
		return nil, errors.Wrap(err, "segmentation model inference failed")
	}
	width, height, data, err := outputGrid(out, mm.OutputName)
	if err != nil {
		return nil, err
	}
	probs, err := toProbabilities(data)
	if err != nil {
		return nil, err
	}
	threshold := mm.Threshold
	if threshold == 0 {
		threshold = DefaultMaskThreshold
	}
	food := make([]bool, len(probs))
	for i, p := range probs {
		food[i] = p > threshold
	}
	return rimage.NewMaskFromSlice(width, height, food)
}
