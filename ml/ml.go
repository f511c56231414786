// Package ml adapts tensor-in tensor-out models to the depth and segmentation handles used by
// the volume estimator.
package ml

import (
	"context"
	"image"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"gorgonia.org/tensor"
)

// Tensors are the named inputs or outputs of a model.
type Tensors map[string]*tensor.Dense

// Model runs inference. Implementations wrap whatever runtime serves the trained network.
type Model interface {
	Infer(ctx context.Context, tensors Tensors) (Tensors, error)
}

// ModelFunc lets an ordinary function act as a Model.
type ModelFunc func(ctx context.Context, tensors Tensors) (Tensors, error)

// Infer calls f.
func (f ModelFunc) Infer(ctx context.Context, tensors Tensors) (Tensors, error) {
	return f(ctx, tensors)
}

// DefaultInputName is the input tensor name used when none is configured.
const DefaultInputName = "image"

// ImageToTensor resizes img to width x height and lays it out as a 1xHxWx3 float32 tensor with
// channels scaled to [0, 1].
func ImageToTensor(img image.Image, width, height int) (*tensor.Dense, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad model input size (%d,%d)", width, height)
	}
	resized := resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	b := resized.Bounds()
	data := make([]float32, 0, width*height*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := resized.At(x, y).RGBA()
			data = append(data, float32(r)/0xffff, float32(g)/0xffff, float32(bl)/0xffff)
		}
	}
	return tensor.New(tensor.WithShape(1, height, width, 3), tensor.WithBacking(data)), nil
}

// outputGrid finds the named output, or the only one, and returns it as a row-major grid.
// Every dimension of size 1 is ignored, so 1xHxW, HxWx1 and HxW are all accepted.
func outputGrid(out Tensors, name string) (width, height int, data []float64, err error) {
	if name == "" && len(out) == 1 {
		for n := range out {
			name = n
		}
	}
	t, ok := out[name]
	if !ok {
		return 0, 0, nil, errors.Errorf("no tensor named %q among output tensors [%s]", name, strings.Join(tensorNames(out), ", "))
	}
	var dims []int
	for _, d := range t.Shape() {
		if d != 1 {
			dims = append(dims, d)
		}
	}
	if len(dims) != 2 {
		return 0, 0, nil, errors.Errorf("output tensor %q has shape %v, expected a single 2D map", name, t.Shape())
	}
	data, err = convertToFloat64Slice(t.Data())
	if err != nil {
		return 0, 0, nil, err
	}
	return dims[1], dims[0], data, nil
}

// number interface for converting between numbers.
type number interface {
	constraints.Integer | constraints.Float
}

// convertNumberSlice converts any number slice into another number slice.
func convertNumberSlice[T1, T2 number](t1 []T1) []T2 {
	t2 := make([]T2, len(t1))
	for i := range t1 {
		t2[i] = T2(t1[i])
	}
	return t2
}

func convertToFloat64Slice(slice interface{}) ([]float64, error) {
	switch v := slice.(type) {
	case []float64:
		return v, nil
	case []float32:
		return convertNumberSlice[float32, float64](v), nil
	case []int:
		return convertNumberSlice[int, float64](v), nil
	case []int8:
		return convertNumberSlice[int8, float64](v), nil
	case []int16:
		return convertNumberSlice[int16, float64](v), nil
	case []int32:
		return convertNumberSlice[int32, float64](v), nil
	case []int64:
		return convertNumberSlice[int64, float64](v), nil
	case []uint8:
		return convertNumberSlice[uint8, float64](v), nil
	case []uint16:
		return convertNumberSlice[uint16, float64](v), nil
	case []uint32:
		return convertNumberSlice[uint32, float64](v), nil
	default:
		return nil, errors.Errorf("dont know how to convert slice of %T into a []float64", slice)
	}
}

// toProbabilities returns in unchanged when every value is already in [0, 1], otherwise it
// treats the values as logits.
func toProbabilities(in []float64) ([]float64, error) {
	for _, p := range in {
		if p < 0 || p > 1 {
			return stats.Sigmoid(in)
		}
	}
	return in, nil
}

// tensorNames returns all the names of the tensors, sorted.
func tensorNames(t Tensors) []string {
	names := []string{}
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
