package rimage

import (
	"bytes"
	"image"

	// registered formats for compressed frame payloads.
	_ "image/jpeg"
	_ "image/png"

	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
)

func init() {
	image.RegisterFormat("ppm", "P6", ppm.Decode, ppm.DecodeConfig)
}

// DecodeImage decompresses an encoded payload (jpeg, png, or ppm) into the
// canonical packed RGB image.
func DecodeImage(payload []byte) (*Image, error) {
	if len(payload) == 0 {
		return nil, errors.New("cannot decode empty payload")
	}
	img, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "payload did not decode to an image")
	}
	if img.Bounds().Empty() {
		return nil, errors.Errorf("%s payload decoded to an empty image", format)
	}
	return ConvertImage(img), nil
}
