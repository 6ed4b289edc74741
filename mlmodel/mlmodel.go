// Package mlmodel is the boundary to a pretrained object-detection model.
// The pipeline treats a model as an opaque capability: given an image sized
// to the model's input shape, it returns raw detections with normalized
// boxes, numeric class ids, and confidences.
package mlmodel

import (
	"context"
	"image"

	"github.com/pkg/errors"
)

// RawDetection is one detection as emitted by a model, before any label
// resolution or coordinate mapping. Box coordinates are normalized to
// [0, 1] relative to the image the model was given.
type RawDetection struct {
	XMin, YMin, XMax, YMax float64
	ClassID                int
	Confidence             float64
}

// Metadata describes a loaded model: the input shape it expects and its own
// class-name table. The same numeric class id can map to different labels
// across models.
type Metadata struct {
	Name        string
	InputWidth  int
	InputHeight int
	Labels      []string
}

// Service is a loaded detection model. Implementations are loaded once at
// startup and are read-only thereafter; Infer never mutates the input image.
type Service interface {
	// Infer runs the model over the image and returns zero or more raw
	// detections. It never errors for "no detections".
	Infer(ctx context.Context, img image.Image) ([]RawDetection, error)
	// Metadata returns the model's static description.
	Metadata() Metadata
	// Close releases the model.
	Close(ctx context.Context) error
}

// NewDeviceError is used when the requested execution device cannot host
// the model.
func NewDeviceError(device string) error {
	return errors.Errorf("execution device %q unavailable", device)
}

// NewInputShapeError is used when an image does not match the model's
// expected input shape.
func NewInputShapeError(got image.Rectangle, md Metadata) error {
	return errors.Errorf("model %q expects %dx%d input but got %dx%d",
		md.Name, md.InputWidth, md.InputHeight, got.Dx(), got.Dy())
}
