package rimage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	_ "golang.org/x/image/tiff" // register tiff decoding for depth files

	"go.viam.com/foodvolume/utils"
)

// MillimetresPerMetre converts 16-bit depth image units to metres.
const MillimetresPerMetre = 1000.0

// DepthMapFromImage reads a 16-bit grey image whose values are depths in millimetres.
// Zero pixels stay zero; callers clip them before back-projection.
func DepthMapFromImage(img image.Image) (*DepthMap, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, utils.NewInvalidParameterError("depth image is empty")
	}
	dm := NewEmptyDepthMap(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			dm.Set(x-b.Min.X, y-b.Min.Y, float64(g.Y)/MillimetresPerMetre)
		}
	}
	return dm, nil
}

// DecodeDepthMap decodes a PNG or TIFF depth image in millimetres.
func DecodeDepthMap(r io.Reader) (*DepthMap, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode depth image")
	}
	if img.ColorModel() != color.Gray16Model {
		return nil, errors.Errorf("depth image must be 16-bit greyscale, got %s %T", format, img)
	}
	return DepthMapFromImage(img)
}

// ReadDepthMap reads a depth image file, see DecodeDepthMap.
func ReadDepthMap(fn string) (*DepthMap, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dm, err := DecodeDepthMap(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %q", fn)
	}
	return dm, nil
}

// DecodeMask decodes any registered image format into a mask. Non-zero pixels are food.
func DecodeMask(r io.Reader) (*Mask, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "cannot decode mask image")
	}
	return MaskFromImage(img), nil
}

// ReadMask reads a mask image file.
func ReadMask(fn string) (*Mask, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := DecodeMask(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %q", fn)
	}
	return m, nil
}

// ToGray16 renders the depth map in millimetres, saturating at 65.535 m.
func (dm *DepthMap) ToGray16() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			mm := utils.Clamp(dm.GetDepth(x, y)*MillimetresPerMetre, 0, 65535)
			img.SetGray16(x, y, color.Gray16{Y: uint16(mm + 0.5)})
		}
	}
	return img
}

// EncodeDepthPNG encodes the depth map as a 16-bit PNG in millimetres.
func EncodeDepthPNG(dm *DepthMap) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, dm.ToGray16()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteImageToFile writes a png to disk.
func WriteImageToFile(fn string, img image.Image) error {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	return multierr.Combine(png.Encode(f, img), f.Close())
}
