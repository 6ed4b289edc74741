package node

import (
	"context"
	"image"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/dualvision/fusion"
	"go.viam.com/dualvision/mlmodel"
	"go.viam.com/dualvision/mlvision"
	"go.viam.com/dualvision/transport"
	"go.viam.com/dualvision/vision/objectdetection"
)

// DisplayFunc receives the annotated frame of every successful pass when
// the diagnostic display is enabled.
type DisplayFunc func(img image.Image)

// Node is the pipeline controller. The transport boundary invokes OnFrame
// once per delivered frame from a single dispatcher goroutine, so frames
// are processed strictly sequentially; each pass owns its buffers and no
// state survives a frame beyond the publisher's sequence counter.
type Node struct {
	cfg     *Config
	decoder *Decoder
	engine  *fusion.Engine
	pub     *Publisher
	models  []mlmodel.Service
	display DisplayFunc

	cancelCtx context.Context
	cancel    func()
	sub       *transport.Subscription
	logger    golog.Logger
}

// New assembles the pipeline: one detector per configured model, in config
// order, each with its own publication threshold.
func New(cfg *Config, bus *transport.Bus, models []mlmodel.Service, clk clock.Clock, logger golog.Logger) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(models) != len(cfg.Detectors) {
		return nil, errors.Errorf("have %d models for %d configured detectors", len(models), len(cfg.Detectors))
	}
	registry := fusion.NewRegistry(logger)
	names := make([]string, 0, len(cfg.Detectors))
	for i, dc := range cfg.Detectors {
		det, err := mlvision.NewMLDetector(models[i], logger)
		if err != nil {
			return nil, errors.Wrapf(err, "could not build detector %q", dc.Name)
		}
		entry := fusion.Entry{
			Name:   dc.Name,
			Detect: det,
			Filter: objectdetection.NewScoreFilter(dc.Confidence),
		}
		if err := registry.Register(entry); err != nil {
			return nil, err
		}
		names = append(names, dc.Name)
	}
	engine, err := registry.NewEngineFor(names, cfg.RawFloor)
	if err != nil {
		return nil, err
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	return &Node{
		cfg:       cfg,
		decoder:   NewDecoder(cfg.UseCompressed),
		engine:    engine,
		pub:       NewPublisher(bus, cfg.DetectionsTopic, cfg.AnnotatedTopic, cfg.CameraFrame, clk),
		models:    models,
		cancelCtx: cancelCtx,
		cancel:    cancel,
		logger:    logger,
	}, nil
}

// SetDisplayFunc installs the diagnostic display hook. It only fires when
// the config enables visualization. Must be called before Start.
func (n *Node) SetDisplayFunc(display DisplayFunc) {
	n.display = display
}

// Start subscribes the pipeline to the configured frame source.
func (n *Node) Start(bus *transport.Bus) error {
	sub, err := bus.Subscribe(n.cfg.InputTopic, n.OnFrame)
	if err != nil {
		return errors.Wrapf(err, "could not subscribe to %q", n.cfg.InputTopic)
	}
	n.sub = sub
	n.logger.Infow("pipeline started",
		"input", n.cfg.InputTopic,
		"detectors", n.engine.Detectors(),
		"compressed", n.cfg.UseCompressed,
	)
	return nil
}

// OnFrame runs one full pass: decode, detect on every model, merge, draw,
// publish. A decode or detection failure drops the frame with a log line
// and without publishing anything; the next frame is processed normally.
func (n *Node) OnFrame(msg transport.Headed) {
	img, err := n.decoder.Decode(msg)
	if err != nil {
		n.logger.Warnw("dropping frame: decode failed", "seq", msg.MessageHeader().Seq, "error", err)
		return
	}
	dets, annotated, err := n.engine.Process(n.cancelCtx, img)
	if err != nil {
		n.logger.Warnw("dropping frame: fusion failed", "seq", msg.MessageHeader().Seq, "error", err)
		return
	}
	hdr := n.pub.NextHeader()
	if err := n.pub.PublishDetections(dets, hdr); err != nil {
		n.logger.Errorw("detections publish rejected", "seq", hdr.Seq, "error", err)
		return
	}
	if err := n.pub.PublishAnnotated(annotated, hdr); err != nil {
		n.logger.Errorw("annotated image publish rejected", "seq", hdr.Seq, "error", err)
		return
	}
	if n.cfg.Visualize && n.display != nil {
		n.display(annotated)
	}
}

// Stats returns delivery counts of the inbound subscription, if started.
func (n *Node) Stats() transport.Stats {
	if n.sub == nil {
		return transport.Stats{}
	}
	return n.sub.Stats()
}

// Close stops the subscription and releases every model.
func (n *Node) Close(ctx context.Context) error {
	n.cancel()
	if n.sub != nil {
		n.sub.Close()
	}
	var err error
	for _, m := range n.models {
		err = multierr.Combine(err, m.Close(ctx))
	}
	return err
}
