package fake

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/dualvision/mlmodel"
)

func dummyImage() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 64, 64))
}

func baseConfig() Config {
	return Config{
		Name:        "test",
		InputWidth:  64,
		InputHeight: 64,
		Labels:      []string{"person"},
		Detections: []mlmodel.RawDetection{
			{XMin: 0.1, YMin: 0.1, XMax: 0.5, YMax: 0.5, ClassID: 0, Confidence: 0.9},
		},
	}
}

func TestNewModelDevice(t *testing.T) {
	_, err := NewModel(baseConfig(), "gpu")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unavailable")

	m, err := NewModel(baseConfig(), DeviceCPU)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Metadata().Name, test.ShouldEqual, "test")
}

func TestNewModelBadShape(t *testing.T) {
	cfg := baseConfig()
	cfg.InputWidth = 0
	_, err := NewModel(cfg, DeviceCPU)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestInfer(t *testing.T) {
	m, err := NewModel(baseConfig(), DeviceCPU)
	test.That(t, err, test.ShouldBeNil)

	img := dummyImage()
	dets, err := m.Infer(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets, test.ShouldHaveLength, 1)
	test.That(t, m.InferCount(), test.ShouldEqual, 1)

	// returned slice is a copy
	dets[0].Confidence = 0
	dets2, err := m.Infer(context.Background(), img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dets2[0].Confidence, test.ShouldEqual, 0.9)
	test.That(t, m.InferCount(), test.ShouldEqual, 2)
}

func TestInferScriptedError(t *testing.T) {
	cfg := baseConfig()
	cfg.Err = errors.New("tensor shape mismatch")
	m, err := NewModel(cfg, DeviceCPU)
	test.That(t, err, test.ShouldBeNil)
	_, err = m.Infer(context.Background(), dummyImage())
	test.That(t, err, test.ShouldBeError, cfg.Err)
}

func TestInferAfterClose(t *testing.T) {
	m, err := NewModel(baseConfig(), DeviceCPU)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.Close(context.Background()), test.ShouldBeNil)
	_, err = m.Infer(context.Background(), dummyImage())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "closed")
}
