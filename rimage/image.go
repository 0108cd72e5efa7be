package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// NRGBAFromRGB converts a packed 24-bit RGB pixel buffer, as delivered by the
// sensor's color stream, into an NRGBA image.
func NRGBAFromRGB(data []byte, width, height int) (*image.NRGBA, error) {
	if len(data) != width*height*3 {
		return nil, errors.Errorf("rgb buffer size %d does not match dimensions (%d,%d)", len(data), width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 3
			img.SetNRGBA(x, y, color.NRGBA{R: data[i], G: data[i+1], B: data[i+2], A: 255})
		}
	}
	return img, nil
}

// GrayFromIR converts an 8-bit infrared intensity buffer into a grayscale
// image.
func GrayFromIR(data []byte, width, height int) (*image.Gray, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("ir buffer size %d does not match dimensions (%d,%d)", len(data), width, height)
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	copy(img.Pix, data)
	return img, nil
}
