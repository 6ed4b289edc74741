package rimage

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"go.viam.com/test"
)

func TestNewImageFromBGR(t *testing.T) {
	// one pixel each: blue, green, red, white in BGR byte order
	payload := []byte{
		255, 0, 0,
		0, 255, 0,
		0, 0, 255,
		255, 255, 255,
	}
	img, err := NewImageFromBGR(payload, 2, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Width(), test.ShouldEqual, 2)
	test.That(t, img.Height(), test.ShouldEqual, 2)
	test.That(t, img.DataRGB(), test.ShouldResemble, []byte{
		0, 0, 255,
		0, 255, 0,
		255, 0, 0,
		255, 255, 255,
	})
}

func TestNewImageFromBGRChannelSwap(t *testing.T) {
	// source pixels in BGR byte order: (0,0,255),(0,255,0),(255,0,0),(255,255,255)
	payload := []byte{0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255, 255}
	img, err := NewImageFromBGR(payload, 2, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.DataRGB(), test.ShouldResemble, []byte{255, 0, 0, 0, 255, 0, 0, 0, 255, 255, 255, 255})
}

func TestNewImageFromBGRBadLength(t *testing.T) {
	_, err := NewImageFromBGR(make([]byte, 11), 2, 2)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 12")

	_, err = NewImageFromBGR(nil, 2, 2)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewImageFromBGR(make([]byte, 13), 2, 2)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestCloneImage(t *testing.T) {
	img := NewImage(3, 2)
	img.SetXY(1, 1, 10, 20, 30)
	clone := CloneImage(img)
	test.That(t, clone.DataRGB(), test.ShouldResemble, img.DataRGB())

	clone.SetXY(1, 1, 99, 99, 99)
	r, g, b := img.GetXY(1, 1)
	test.That(t, []byte{r, g, b}, test.ShouldResemble, []byte{10, 20, 30})
}

func TestConvertImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 5, G: 6, B: 7, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 8, G: 9, B: 10, A: 255})
	img := ConvertImage(src)
	test.That(t, img.DataRGB(), test.ShouldResemble, []byte{5, 6, 7, 8, 9, 10})

	// converting the canonical type is a no-op
	test.That(t, ConvertImage(img), test.ShouldEqual, img)
}

func TestImageAt(t *testing.T) {
	img := NewImage(2, 2)
	img.SetXY(1, 0, 1, 2, 3)
	c := img.At(1, 0)
	test.That(t, c, test.ShouldResemble, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 2, 2))
	test.That(t, img.In(1, 1), test.ShouldBeTrue)
	test.That(t, img.In(2, 1), test.ShouldBeFalse)
}

func TestDecodeImage(t *testing.T) {
	src := NewImage(4, 3)
	src.SetXY(2, 1, 200, 100, 50)
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, src), test.ShouldBeNil)

	img, err := DecodeImage(buf.Bytes())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.DataRGB(), test.ShouldResemble, src.DataRGB())
}

func TestDecodeImageBadPayload(t *testing.T) {
	_, err := DecodeImage(nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = DecodeImage([]byte("definitely not an image"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "did not decode")
}
