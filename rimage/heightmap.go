package rimage

import (
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// HeightMapImage renders per-pixel heights above the reference plane as a false-colour image.
// Pixels at or below zero height are left transparent. Heights are saturated at maxHeight;
// a non-positive maxHeight uses the largest height present.
func HeightMapImage(width, height int, heights []float64, maxHeight float64) (*image.NRGBA, error) {
	if len(heights) != width*height {
		return nil, errors.Errorf("height map has %d values, expected %dx%d=%d", len(heights), width, height, width*height)
	}
	if maxHeight <= 0 {
		for _, h := range heights {
			if h > maxHeight {
				maxHeight = h
			}
		}
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if maxHeight <= 0 {
		return img, nil
	}
	for i, h := range heights {
		if !(h > 0) {
			continue
		}
		ratio := h / maxHeight
		if ratio > 1 {
			ratio = 1
		}
		// blue for low, red for high
		hue := 240 * (1 - ratio)
		r, g, b := colorful.Hsv(hue, 1.0, 1.0).RGB255()
		img.SetNRGBA(i%width, i/width, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	return img, nil
}
