// Package node wires the frame decoder, fusion engine, and publisher into a
// pipeline driven by the transport boundary.
package node

import (
	"encoding/json"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a convenience for detector-specific parameters in a
// config.
type AttributeMap map[string]interface{}

// TransformAttributeMapToStruct uses an attribute map to transform attributes
// to the perscribed format.
func TransformAttributeMapToStruct(to interface{}, attributes AttributeMap) (interface{}, error) {
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   to,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	return to, nil
}

// DetectorConfig specifies one model wired into the node, in invocation
// order.
type DetectorConfig struct {
	Name        string `json:"name"`
	WeightsPath string `json:"weights_path"`
	// Confidence is the publication threshold applied to this model's
	// output. It is independent of the per-call floor (see Config.RawFloor).
	Confidence float64      `json:"confidence"`
	Parameters AttributeMap `json:"parameters,omitempty"`
}

// Config is the full node configuration, resolved once at startup and
// immutable for the process lifetime.
type Config struct {
	InputTopic      string `json:"input_topic"`
	DetectionsTopic string `json:"detections_topic"`
	AnnotatedTopic  string `json:"annotated_topic"`
	CameraFrame     string `json:"camera_frame"`
	UseCompressed   bool   `json:"use_compressed"`
	// RawFloor is the confidence passed to every detector invocation. It is
	// deliberately lower than the publication thresholds so low-confidence
	// candidates reach the adapter layer.
	RawFloor  float64          `json:"raw_floor"`
	Device    string           `json:"device"`
	Visualize bool             `json:"visualize"`
	Detectors []DetectorConfig `json:"detectors"`
}

// Defaults mirrored from the node's original deployment.
const (
	DefaultInputTopic      = "/camera/color/image_raw"
	DefaultDetectionsTopic = "/dualvision/bounding_boxes"
	DefaultAnnotatedTopic  = "/dualvision/detection_image"
	DefaultConfidence      = 0.5
	DefaultRawFloor        = 0.3
	DefaultDevice          = "cpu"
)

// DefaultConfig returns a config with every field at its default. Detectors
// must still be filled in.
func DefaultConfig() *Config {
	return &Config{
		InputTopic:      DefaultInputTopic,
		DetectionsTopic: DefaultDetectionsTopic,
		AnnotatedTopic:  DefaultAnnotatedTopic,
		RawFloor:        DefaultRawFloor,
		Device:          DefaultDevice,
		Visualize:       true,
	}
}

// ReadConfig loads a JSON config from disk, substituting ${ENV} references
// first, and validates it.
func ReadConfig(path string) (*Config, error) {
	buf, err := envsubst.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read config at %q", path)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(buf, cfg); err != nil {
		return nil, errors.Wrapf(err, "could not parse config at %q", path)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config at %q invalid", path)
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.InputTopic == "" {
		c.InputTopic = DefaultInputTopic
	}
	if c.DetectionsTopic == "" {
		c.DetectionsTopic = DefaultDetectionsTopic
	}
	if c.AnnotatedTopic == "" {
		c.AnnotatedTopic = DefaultAnnotatedTopic
	}
	if c.RawFloor == 0 {
		c.RawFloor = DefaultRawFloor
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	for i := range c.Detectors {
		if c.Detectors[i].Confidence == 0 {
			c.Detectors[i].Confidence = DefaultConfidence
		}
	}
}

// Validate checks the config for impossible values.
func (c *Config) Validate() error {
	if len(c.Detectors) < 2 {
		return errors.Errorf("need at least two detectors, got %d", len(c.Detectors))
	}
	seen := map[string]bool{}
	for _, d := range c.Detectors {
		if d.Name == "" {
			return errors.New("every detector needs a name")
		}
		if seen[d.Name] {
			return errors.Errorf("duplicate detector name %q", d.Name)
		}
		seen[d.Name] = true
		if d.Confidence < 0 || d.Confidence > 1 {
			return errors.Errorf("detector %q confidence %f must be in [0,1]", d.Name, d.Confidence)
		}
	}
	if c.RawFloor < 0 || c.RawFloor > 1 {
		return errors.Errorf("raw_floor %f must be in [0,1]", c.RawFloor)
	}
	if c.Device != "cpu" && c.Device != "gpu" {
		return errors.Errorf("device must be cpu or gpu, got %q", c.Device)
	}
	if c.DetectionsTopic == c.InputTopic || c.AnnotatedTopic == c.InputTopic {
		return errors.New("output topics must differ from the input topic")
	}
	return nil
}
