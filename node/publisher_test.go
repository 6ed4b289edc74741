package node

import (
	"image"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/dualvision/rimage"
	"go.viam.com/dualvision/transport"
	"go.viam.com/dualvision/vision/objectdetection"
)

func collect(t *testing.T, bus *transport.Bus, topic string) chan transport.Headed {
	t.Helper()
	ch := make(chan transport.Headed, 4)
	_, err := bus.Subscribe(topic, func(msg transport.Headed) { ch <- msg })
	test.That(t, err, test.ShouldBeNil)
	return ch
}

func waitFor(t *testing.T, ch chan transport.Headed) transport.Headed {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("never received message")
		return nil
	}
}

func TestPublishDetections(t *testing.T) {
	bus := transport.NewBus()
	defer bus.Close()
	ch := collect(t, bus, "/out/dets")

	mockClock := clock.NewMock()
	mockClock.Set(time.Unix(1700000000, 0))
	pub := NewPublisher(bus, "/out/dets", "/out/img", "camera_link", mockClock)

	dets := []objectdetection.Detection{
		objectdetection.NewDetection(image.Rect(10, 10, 50, 80), 0.91, "person"),
	}
	hdr := pub.NextHeader()
	test.That(t, hdr.Seq, test.ShouldEqual, 1)
	test.That(t, hdr.Stamp, test.ShouldEqual, time.Unix(1700000000, 0))
	test.That(t, hdr.FrameID, test.ShouldEqual, "camera_link")

	test.That(t, pub.PublishDetections(dets, hdr), test.ShouldBeNil)
	msg := waitFor(t, ch).(*transport.Detections)
	test.That(t, msg.Header, test.ShouldResemble, hdr)
	test.That(t, msg.Boxes, test.ShouldResemble, []transport.BoundingBox{
		{Class: "person", Probability: 0.91, XMin: 10, YMin: 10, XMax: 50, YMax: 80},
	})
}

func TestPublishDetectionsEmpty(t *testing.T) {
	bus := transport.NewBus()
	defer bus.Close()
	ch := collect(t, bus, "/out/dets")

	pub := NewPublisher(bus, "/out/dets", "/out/img", "camera_link", clock.NewMock())
	test.That(t, pub.PublishDetections(nil, pub.NextHeader()), test.ShouldBeNil)

	msg := waitFor(t, ch).(*transport.Detections)
	test.That(t, msg.Boxes, test.ShouldHaveLength, 0)
}

func TestPublishAnnotated(t *testing.T) {
	bus := transport.NewBus()
	defer bus.Close()
	ch := collect(t, bus, "/out/img")

	pub := NewPublisher(bus, "/out/dets", "/out/img", "camera_link", clock.NewMock())
	img := rimage.NewImage(4, 2)
	img.SetXY(0, 0, 9, 8, 7)
	hdr := pub.NextHeader()
	test.That(t, pub.PublishAnnotated(img, hdr), test.ShouldBeNil)

	msg := waitFor(t, ch).(*transport.ImageFrame)
	test.That(t, msg.Header, test.ShouldResemble, hdr)
	test.That(t, msg.Width, test.ShouldEqual, 4)
	test.That(t, msg.Height, test.ShouldEqual, 2)
	test.That(t, msg.Encoding, test.ShouldEqual, transport.ImageFrameEncoding)
	test.That(t, msg.Step, test.ShouldEqual, 12)
	test.That(t, msg.Data, test.ShouldResemble, img.DataRGB())
}

func TestPublishClosedBus(t *testing.T) {
	bus := transport.NewBus()
	pub := NewPublisher(bus, "/out/dets", "/out/img", "camera_link", clock.NewMock())
	bus.Close()

	err := pub.PublishDetections(nil, pub.NextHeader())
	test.That(t, err, test.ShouldNotBeNil)
	err = pub.PublishAnnotated(rimage.NewImage(1, 1), pub.NextHeader())
	test.That(t, err, test.ShouldNotBeNil)
}

func TestHeadersShareStampAcrossMessages(t *testing.T) {
	mockClock := clock.NewMock()
	pub := NewPublisher(transport.NewBus(), "/out/dets", "/out/img", "cam", mockClock)
	hdr := pub.NextHeader()
	hdr2 := pub.NextHeader()
	test.That(t, hdr2.Seq, test.ShouldEqual, hdr.Seq+1)
	test.That(t, hdr.ID, test.ShouldNotEqual, hdr2.ID)
}
