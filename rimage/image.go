// Package rimage defines the canonical in-memory image used by the
// detection pipeline, along with decoding and drawing helpers.
package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
)

// Image is a densely packed height x width x 3 image with 8-bit samples in
// RGB channel order. It implements image.Image so it can be handed directly
// to detectors and drawing contexts.
type Image struct {
	data          []byte
	width, height int
}

// NewImage returns a black image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{
		data:   make([]byte, width*height*3),
		width:  width,
		height: height,
	}
}

// NewImageFromBGR reorders a packed BGR payload into a canonical RGB image.
// The payload length must match the declared dimensions exactly.
func NewImageFromBGR(data []byte, width, height int) (*Image, error) {
	if want := width * height * 3; len(data) != want {
		return nil, errors.Errorf("payload is %d bytes, expected %d for %dx%dx3 frame", len(data), want, width, height)
	}
	img := NewImage(width, height)
	for i := 0; i < len(data); i += 3 {
		img.data[i] = data[i+2]
		img.data[i+1] = data[i+1]
		img.data[i+2] = data[i]
	}
	return img, nil
}

// ConvertImage flattens any image.Image into the packed RGB representation.
// If img is already an *Image, it is returned as is.
func ConvertImage(img image.Image) *Image {
	if rimg, ok := img.(*Image); ok {
		return rimg
	}
	bounds := img.Bounds()
	out := NewImage(bounds.Dx(), bounds.Dy())
	k := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out.data[k] = byte(r >> 8)
			out.data[k+1] = byte(g >> 8)
			out.data[k+2] = byte(b >> 8)
			k += 3
		}
	}
	return out
}

// CloneImage returns a deep copy whose pixels can be mutated without
// touching the source.
func CloneImage(img *Image) *Image {
	out := &Image{
		data:   make([]byte, len(img.data)),
		width:  img.width,
		height: img.height,
	}
	copy(out.data, img.data)
	return out
}

// ColorModel returns the model for the underlying 8-bit RGB samples.
func (i *Image) ColorModel() color.Model { return color.NRGBAModel }

// Bounds returns the rectangle of the image, anchored at the origin.
func (i *Image) Bounds() image.Rectangle { return image.Rect(0, 0, i.width, i.height) }

// Width returns the horizontal dimension in pixels.
func (i *Image) Width() int { return i.width }

// Height returns the vertical dimension in pixels.
func (i *Image) Height() int { return i.height }

// In reports whether the point is inside the image.
func (i *Image) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < i.width && y < i.height
}

func (i *Image) kxy(x, y int) int {
	return (y*i.width + x) * 3
}

// At implements image.Image.
func (i *Image) At(x, y int) color.Color {
	k := i.kxy(x, y)
	return color.NRGBA{R: i.data[k], G: i.data[k+1], B: i.data[k+2], A: 255}
}

// GetXY returns the RGB samples at the given coordinates.
func (i *Image) GetXY(x, y int) (r, g, b byte) {
	k := i.kxy(x, y)
	return i.data[k], i.data[k+1], i.data[k+2]
}

// SetXY overwrites the RGB samples at the given coordinates.
func (i *Image) SetXY(x, y int, r, g, b byte) {
	k := i.kxy(x, y)
	i.data[k], i.data[k+1], i.data[k+2] = r, g, b
}

// DataRGB exposes the packed RGB bytes, row-major, stride = width*3. The
// slice aliases the image; callers that outlive the frame must copy.
func (i *Image) DataRGB() []byte { return i.data }
