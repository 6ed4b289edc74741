package node

import (
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/dualvision/rimage"
	"go.viam.com/dualvision/transport"
	"go.viam.com/dualvision/vision/objectdetection"
)

// Publisher serializes per-frame results into outbound messages. Both
// messages of one frame share a header, so they carry the same stamp and
// sequence number.
type Publisher struct {
	bus             *transport.Bus
	detectionsTopic string
	annotatedTopic  string
	cameraFrame     string
	clock           clock.Clock
	seq             uint64
}

// NewPublisher returns a publisher on the given bus. A mock clock can be
// injected for tests.
func NewPublisher(bus *transport.Bus, detectionsTopic, annotatedTopic, cameraFrame string, clk clock.Clock) *Publisher {
	if clk == nil {
		clk = clock.New()
	}
	return &Publisher{
		bus:             bus,
		detectionsTopic: detectionsTopic,
		annotatedTopic:  annotatedTopic,
		cameraFrame:     cameraFrame,
		clock:           clk,
	}
}

// NextHeader stamps a new outbound header for one frame's messages.
func (p *Publisher) NextHeader() transport.Header {
	p.seq++
	return transport.Header{
		Seq:     p.seq,
		Stamp:   p.clock.Now(),
		FrameID: p.cameraFrame,
		ID:      uuid.New(),
	}
}

// PublishDetections emits the full merged detection list, even when empty.
func (p *Publisher) PublishDetections(dets []objectdetection.Detection, hdr transport.Header) error {
	boxes := make([]transport.BoundingBox, 0, len(dets))
	for _, d := range dets {
		bb := d.BoundingBox()
		boxes = append(boxes, transport.BoundingBox{
			Class:       d.Label(),
			Probability: d.Score(),
			XMin:        bb.Min.X,
			YMin:        bb.Min.Y,
			XMax:        bb.Max.X,
			YMax:        bb.Max.Y,
		})
	}
	msg := &transport.Detections{Header: hdr, Boxes: boxes}
	return errors.Wrap(p.bus.Publish(p.detectionsTopic, msg), "could not publish detections")
}

// PublishAnnotated emits the annotated frame as packed rgb8 with
// stride = width*3.
func (p *Publisher) PublishAnnotated(img *rimage.Image, hdr transport.Header) error {
	msg := &transport.ImageFrame{
		Header:   hdr,
		Width:    img.Width(),
		Height:   img.Height(),
		Encoding: transport.ImageFrameEncoding,
		Step:     img.Width() * 3,
		Data:     img.DataRGB(),
	}
	return errors.Wrap(p.bus.Publish(p.annotatedTopic, msg), "could not publish annotated image")
}
