// Package fusion runs every configured detector over a frame and fuses
// their outputs into one ordered detection list plus an annotated copy of
// the frame.
package fusion

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"go.viam.com/dualvision/rimage"
	"go.viam.com/dualvision/vision/objectdetection"
)

// Entry is one detector wired into the engine, in invocation order. Filter
// is the per-model publication threshold; it runs on that detector's output
// before the merge and may be nil.
type Entry struct {
	Name   string
	Detect objectdetection.Detector
	Filter objectdetection.Postprocessor
}

// Engine fuses the outputs of two or more detectors. The registration order
// of the entries is the invocation order, the merge order, and the draw
// order.
type Engine struct {
	entries []Entry
	floor   float64
	logger  golog.Logger
}

// NewEngine builds a fusion engine. The floor is the confidence passed to
// every detector call; it is independent of any per-entry publication
// filter.
func NewEngine(entries []Entry, floor float64, logger golog.Logger) (*Engine, error) {
	if len(entries) < 2 {
		return nil, errors.Errorf("fusion engine needs at least two detectors, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Detect == nil {
			return nil, errors.Errorf("detector %q is nil", e.Name)
		}
	}
	return &Engine{entries: entries, floor: floor, logger: logger}, nil
}

// Process calls every detector exactly once on the frame, concatenates their
// detections in entry order with no cross-model deduplication, and overlays
// the merged list onto a copy of the frame. The input frame is never
// modified. If any detector fails the whole frame fails and nothing is
// returned.
func (e *Engine) Process(ctx context.Context, img *rimage.Image) ([]objectdetection.Detection, *rimage.Image, error) {
	merged := []objectdetection.Detection{}
	for _, entry := range e.entries {
		dets, err := entry.Detect(ctx, img, e.floor)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "detector %q failed", entry.Name)
		}
		if entry.Filter != nil {
			dets = entry.Filter(dets)
		}
		merged = append(merged, dets...)
	}
	annotated, err := objectdetection.Overlay(img, merged)
	if err != nil {
		return nil, nil, errors.Wrap(err, "could not overlay merged detections")
	}
	return merged, annotated, nil
}

// Detectors returns the names of the wired detectors in invocation order.
func (e *Engine) Detectors() []string {
	names := make([]string, 0, len(e.entries))
	for _, entry := range e.entries {
		names = append(names, entry.Name)
	}
	return names
}
