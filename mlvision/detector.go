// Package mlvision turns a loaded ML model into an object detector usable
// by the fusion engine.
package mlvision

import (
	"context"
	"image"
	"strconv"

	"github.com/edaniels/golog"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"go.viam.com/dualvision/mlmodel"
	"go.viam.com/dualvision/vision/objectdetection"
)

// NewMLDetector wraps a model into a Detector. The detector resizes the
// frame to the model's input shape, runs inference, drops raw detections
// below the per-call confidence floor, maps normalized boxes back into frame
// pixel coordinates, and resolves class labels from the model's own label
// table. The returned detector never mutates the input image.
func NewMLDetector(model mlmodel.Service, logger golog.Logger) (objectdetection.Detector, error) {
	if model == nil {
		return nil, errors.New("cannot build detector from nil model")
	}
	md := model.Metadata()
	if md.InputWidth <= 0 || md.InputHeight <= 0 {
		return nil, mlmodel.NewInputShapeError(image.Rectangle{}, md)
	}
	if len(md.Labels) == 0 {
		logger.Warnw("model has no label table, detections will carry numeric class ids", "model", md.Name)
	}
	return func(ctx context.Context, img image.Image, floor float64) ([]objectdetection.Detection, error) {
		if img == nil {
			return nil, errors.Errorf("no image to detect on for model %q", md.Name)
		}
		origW, origH := img.Bounds().Dx(), img.Bounds().Dy()
		resized := resize.Resize(uint(md.InputWidth), uint(md.InputHeight), img, resize.Bilinear)
		raw, err := model.Infer(ctx, resized)
		if err != nil {
			return nil, errors.Wrapf(err, "inference failed on model %q", md.Name)
		}
		detections := make([]objectdetection.Detection, 0, len(raw))
		for _, r := range raw {
			if r.Confidence < floor {
				continue
			}
			rect := scaleBox(r, origW, origH)
			detections = append(detections, objectdetection.NewDetection(rect, r.Confidence, labelFor(md.Labels, r.ClassID)))
		}
		return detections, nil
	}, nil
}

// scaleBox maps a normalized box onto the original frame, keeping every
// coordinate inside [0, width) x [0, height).
func scaleBox(r mlmodel.RawDetection, width, height int) image.Rectangle {
	xmin := int(clamp(r.XMin, 0, 1) * float64(width))
	ymin := int(clamp(r.YMin, 0, 1) * float64(height))
	xmax := int(clamp(r.XMax, 0, 1) * float64(width))
	ymax := int(clamp(r.YMax, 0, 1) * float64(height))
	if xmax >= width {
		xmax = width - 1
	}
	if ymax >= height {
		ymax = height - 1
	}
	if xmin > xmax {
		xmin = xmax
	}
	if ymin > ymax {
		ymin = ymax
	}
	return image.Rect(xmin, ymin, xmax, ymax)
}

func labelFor(labels []string, classID int) string {
	if classID >= 0 && classID < len(labels) {
		return labels[classID]
	}
	return strconv.Itoa(classID)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
