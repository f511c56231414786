package ml

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"gorgonia.org/tensor"
)

func solidImage(width, height int, c color.Color) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// echoModel checks the input layout then answers with out.
func echoModel(t *testing.T, inputName string, width, height int, out Tensors) Model {
	t.Helper()
	return ModelFunc(func(ctx context.Context, in Tensors) (Tensors, error) {
		img, ok := in[inputName]
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, []int(img.Shape()), test.ShouldResemble, []int{1, height, width, 3})
		return out, nil
	})
}

func TestImageToTensor(t *testing.T) {
	in, err := ImageToTensor(solidImage(8, 4, color.NRGBA{255, 0, 255, 255}), 4, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, []int(in.Shape()), test.ShouldResemble, []int{1, 2, 4, 3})
	data, ok := in.Data().([]float32)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, data[:3], test.ShouldResemble, []float32{1, 0, 1})

	_, err = ImageToTensor(solidImage(8, 4, color.Black), 0, 2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConvertToFloat64Slice(t *testing.T) {
	out, err := convertToFloat64Slice([]uint8{0, 7, 255})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []float64{0, 7, 255})
	out, err = convertToFloat64Slice([]float32{0.5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, []float64{0.5})
	_, err = convertToFloat64Slice([]string{"a"})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDepthModel(t *testing.T) {
	raw := []float32{1, 2, 3, 4, 5, 6}
	out := Tensors{"depth": tensor.New(tensor.WithShape(1, 2, 3, 1), tensor.WithBacking(raw))}
	dm := &DepthModel{Model: echoModel(t, DefaultInputName, 3, 2, out), InputWidth: 3, InputHeight: 2}

	depth, err := dm.EstimateDepth(context.Background(), solidImage(6, 4, color.White))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depth.Width(), test.ShouldEqual, 3)
	test.That(t, depth.Height(), test.ShouldEqual, 2)
	test.That(t, depth.GetDepth(2, 1), test.ShouldEqual, 6)

	t.Run("disparity", func(t *testing.T) {
		disp := Tensors{"disp": tensor.New(tensor.WithShape(1, 2), tensor.WithBacking([]float32{0, 1}))}
		dm := &DepthModel{
			Model:      echoModel(t, "input", 2, 1, disp),
			InputWidth: 2, InputHeight: 1, InputName: "input",
			Disparity: true, MinDepth: 0.01, MaxDepth: 10,
		}
		depth, err := dm.EstimateDepth(context.Background(), solidImage(2, 1, color.White))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, depth.GetDepth(0, 0), test.ShouldAlmostEqual, 10)
		test.That(t, depth.GetDepth(1, 0), test.ShouldAlmostEqual, 0.01)
	})

	t.Run("output errors", func(t *testing.T) {
		two := Tensors{
			"a": tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float32{1, 2, 3, 4})),
			"b": tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float32{1, 2, 3, 4})),
		}
		dm := &DepthModel{Model: echoModel(t, DefaultInputName, 2, 2, two), InputWidth: 2, InputHeight: 2}
		_, err := dm.EstimateDepth(context.Background(), solidImage(2, 2, color.White))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "[a, b]")

		cube := Tensors{"d": tensor.New(tensor.WithShape(2, 2, 2), tensor.WithBacking(make([]float32, 8)))}
		dm = &DepthModel{Model: echoModel(t, DefaultInputName, 2, 2, cube), InputWidth: 2, InputHeight: 2}
		_, err = dm.EstimateDepth(context.Background(), solidImage(2, 2, color.White))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "single 2D map")
	})

	t.Run("inference failure", func(t *testing.T) {
		failing := ModelFunc(func(ctx context.Context, in Tensors) (Tensors, error) {
			return nil, errors.New("no accelerator")
		})
		dm := &DepthModel{Model: failing, InputWidth: 2, InputHeight: 2}
		_, err := dm.EstimateDepth(context.Background(), solidImage(2, 2, color.White))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "no accelerator")
	})
}

func TestMaskModel(t *testing.T) {
	probs := Tensors{"mask": tensor.New(tensor.WithShape(1, 2, 2), tensor.WithBacking([]float32{0.1, 0.9, 0.6, 0.4}))}
	mm := &MaskModel{Model: echoModel(t, DefaultInputName, 2, 2, probs), InputWidth: 2, InputHeight: 2}
	mask, err := mm.Segment(context.Background(), solidImage(4, 4, color.White))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mask.Data(), test.ShouldResemble, []bool{false, true, true, false})

	mm.Threshold = 0.7
	mask, err = mm.Segment(context.Background(), solidImage(4, 4, color.White))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mask.Data(), test.ShouldResemble, []bool{false, true, false, false})

	t.Run("logits", func(t *testing.T) {
		logits := Tensors{"mask": tensor.New(tensor.WithShape(1, 3), tensor.WithBacking([]float32{-4, 0.3, 6}))}
		mm := &MaskModel{Model: echoModel(t, DefaultInputName, 3, 1, logits), InputWidth: 3, InputHeight: 1}
		mask, err := mm.Segment(context.Background(), solidImage(3, 1, color.White))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, mask.Data(), test.ShouldResemble, []bool{false, true, true})
	})
}
