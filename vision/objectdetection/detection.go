// Package objectdetection defines the detection type returned by object
// detectors and the tools to overlay them on an image.
package objectdetection

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"go.viam.com/dualvision/rimage"
)

// Detector returns the detections found in an image at or above the given
// confidence floor.
type Detector func(ctx context.Context, img image.Image, floor float64) ([]Detection, error)

// Detection returns a bounding box around the object and a confidence score
// of the detection, along with the label resolved by the detecting model.
type Detection interface {
	BoundingBox() image.Rectangle
	Score() float64
	Label() string
}

// NewDetection creates a simple 2D detection.
func NewDetection(boundingBox image.Rectangle, score float64, label string) Detection {
	return &detection2D{boundingBox, score, label}
}

// detection2D is a simple struct for storing 2D detections.
type detection2D struct {
	boundingBox image.Rectangle
	score       float64
	label       string
}

// BoundingBox returns a bounding box around the detected object.
func (d *detection2D) BoundingBox() image.Rectangle {
	return d.boundingBox
}

// Score returns a confidence score of the detection between 0.0 and 1.0.
func (d *detection2D) Score() float64 {
	return d.score
}

// Label returns the class label of the object in the bounding box.
func (d *detection2D) Label() string {
	return d.label
}

func (d *detection2D) String() string {
	return fmt.Sprintf("Label: %s, Score: %.2f, Location: %v", d.label, d.score, d.boundingBox)
}

// boxPalette is the set of colors overlays cycle through, keyed by label so
// the same class keeps the same color across frames.
var boxPalette = []color.NRGBA{
	{0, 255, 0, 255},
	{255, 0, 255, 255},
	{0, 255, 255, 255},
	{255, 255, 0, 255},
	{255, 0, 0, 255},
	{0, 0, 255, 255},
}

func labelColor(label string) color.NRGBA {
	h := fnv.New32a()
	h.Write([]byte(label))
	return boxPalette[int(h.Sum32())%len(boxPalette)]
}

// overlay geometry, matching the source frame coordinate space.
const (
	boxLineWidth = 2.0
	labelSize    = 12.0
	labelOffset  = 14
)

// Overlay returns a new image with a box and label drawn for every detection,
// in slice order, so later detections paint over earlier ones where boxes
// overlap. The input image is never modified.
func Overlay(img image.Image, dets []Detection) (*rimage.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("must have an image to overlay detections")
	}
	if len(dets) == 0 {
		return rimage.CloneImage(rimage.ConvertImage(img)), nil
	}
	dc := gg.NewContextForImage(img)
	for _, d := range dets {
		c := labelColor(d.Label())
		rimage.DrawRectangleEmpty(dc, d.BoundingBox(), c, boxLineWidth)
		text := fmt.Sprintf("%s: %.2f", d.Label(), d.Score())
		anchor := image.Point{d.BoundingBox().Min.X, d.BoundingBox().Min.Y - labelOffset}
		rimage.DrawString(dc, text, anchor, c, labelSize)
	}
	return rimage.ConvertImage(dc.Image()), nil
}
