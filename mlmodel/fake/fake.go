// Package fake implements an in-memory detection model with scripted
// output, for tests and local demos.
package fake

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"go.viam.com/dualvision/mlmodel"
)

// DeviceCPU is the only execution device the fake model supports.
const DeviceCPU = "cpu"

// Config scripts a fake model's behavior.
type Config struct {
	Name        string
	InputWidth  int
	InputHeight int
	Labels      []string
	// Detections is returned verbatim on every Infer call.
	Detections []mlmodel.RawDetection
	// Err, if set, is returned by every Infer call instead.
	Err error
}

// Model is a scripted detection model.
type Model struct {
	cfg        Config
	inferCount int64
	mu         sync.Mutex
	closed     bool
}

// NewModel validates the config and the requested execution device. Any
// device other than "cpu" fails, which is how a node configured for
// accelerated execution surfaces a device-placement error.
func NewModel(cfg Config, device string) (*Model, error) {
	if device != DeviceCPU {
		return nil, mlmodel.NewDeviceError(device)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		return nil, errors.Errorf("model %q input shape %dx%d is invalid", cfg.Name, cfg.InputWidth, cfg.InputHeight)
	}
	return &Model{cfg: cfg}, nil
}

// Infer returns the scripted detections (or the scripted error) and bumps
// the call counter.
func (m *Model) Infer(ctx context.Context, img image.Image) ([]mlmodel.RawDetection, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, errors.Errorf("model %q is closed", m.cfg.Name)
	}
	atomic.AddInt64(&m.inferCount, 1)
	if m.cfg.Err != nil {
		return nil, m.cfg.Err
	}
	if img == nil {
		return nil, errors.New("no image to run inference on")
	}
	out := make([]mlmodel.RawDetection, len(m.cfg.Detections))
	copy(out, m.cfg.Detections)
	return out, nil
}

// Metadata returns the scripted model description.
func (m *Model) Metadata() mlmodel.Metadata {
	return mlmodel.Metadata{
		Name:        m.cfg.Name,
		InputWidth:  m.cfg.InputWidth,
		InputHeight: m.cfg.InputHeight,
		Labels:      m.cfg.Labels,
	}
}

// InferCount returns how many times Infer has been called.
func (m *Model) InferCount() int {
	return int(atomic.LoadInt64(&m.inferCount))
}

// Close marks the model closed; subsequent Infer calls error.
func (m *Model) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
