// Package main runs the dual-model detection node against an in-process
// transport. With -demo it also feeds synthetic camera frames so the whole
// pipeline can be exercised locally.
package main

import (
	"context"
	"flag"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/dualvision/mlmodel"
	"go.viam.com/dualvision/mlmodel/fake"
	"go.viam.com/dualvision/node"
	"go.viam.com/dualvision/transport"
)

var logger = golog.NewDevelopmentLogger("dualvision")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	flagSet := flag.NewFlagSet("dualvision", flag.ExitOnError)
	configPath := flagSet.String("config", "", "path to a JSON config; defaults apply when empty")
	demo := flagSet.Bool("demo", true, "publish synthetic frames to the input topic")
	outDir := flagSet.String("out", "", "directory the diagnostic display writes annotated frames to")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	var cfg *node.Config
	var err error
	if *configPath != "" {
		cfg, err = node.ReadConfig(*configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = node.DefaultConfig()
		cfg.Detectors = []node.DetectorConfig{
			{Name: "custom", Confidence: node.DefaultConfidence},
			{Name: "general", Confidence: node.DefaultConfidence},
		}
	}

	models, err := loadModels(cfg)
	if err != nil {
		return err
	}

	bus := transport.NewBus()
	defer bus.Close()

	n, err := node.New(cfg, bus, models, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		utils.UncheckedErrorFunc(func() error { return n.Close(context.Background()) })
	}()
	if *outDir != "" {
		n.SetDisplayFunc(saveFrameFunc(*outDir, logger))
	}
	if err := n.Start(bus); err != nil {
		return err
	}

	if *demo {
		feedFrames(ctx, bus, cfg, logger)
	} else {
		<-ctx.Done()
	}
	stats := n.Stats()
	logger.Infow("pipeline stopped", "processed", stats.Sent, "dropped", stats.Dropped)
	return nil
}

// loadModels stands in for loading detector weights from disk; each
// configured detector gets a scripted in-memory model on the configured
// execution device.
func loadModels(cfg *node.Config) ([]mlmodel.Service, error) {
	fixtures := []fake.Config{
		{
			Name:        "custom",
			InputWidth:  640,
			InputHeight: 640,
			Labels:      []string{"pallet", "forklift", "cone"},
			Detections: []mlmodel.RawDetection{
				{XMin: 0.1, YMin: 0.1, XMax: 0.4, YMax: 0.6, ClassID: 0, Confidence: 0.91},
			},
		},
		{
			Name:        "general",
			InputWidth:  640,
			InputHeight: 640,
			Labels:      []string{"person", "bicycle", "car"},
			Detections: []mlmodel.RawDetection{
				{XMin: 0.5, YMin: 0.2, XMax: 0.8, YMax: 0.9, ClassID: 0, Confidence: 0.77},
				{XMin: 0.05, YMin: 0.05, XMax: 0.2, YMax: 0.3, ClassID: 2, Confidence: 0.35},
			},
		},
	}
	models := make([]mlmodel.Service, 0, len(cfg.Detectors))
	for i, dc := range cfg.Detectors {
		fixture := fixtures[i%len(fixtures)]
		fixture.Name = dc.Name
		if len(dc.Parameters) > 0 {
			var params modelParams
			if _, err := node.TransformAttributeMapToStruct(&params, dc.Parameters); err != nil {
				return nil, errors.Wrapf(err, "bad parameters for detector %q", dc.Name)
			}
			if params.InputWidth > 0 {
				fixture.InputWidth = params.InputWidth
			}
			if params.InputHeight > 0 {
				fixture.InputHeight = params.InputHeight
			}
		}
		if dc.WeightsPath != "" {
			logger.Infow("loading detector weights", "detector", dc.Name, "path", dc.WeightsPath)
		}
		model, err := fake.NewModel(fixture, cfg.Device)
		if err != nil {
			return nil, errors.Wrapf(err, "could not load model for detector %q", dc.Name)
		}
		models = append(models, model)
	}
	return models, nil
}

// modelParams are the optional per-detector parameters the demo loader
// understands.
type modelParams struct {
	InputWidth  int `json:"input_width"`
	InputHeight int `json:"input_height"`
}

// feedFrames publishes a synthetic raw BGR frame ten times a second until
// the context is done.
func feedFrames(ctx context.Context, bus *transport.Bus, cfg *node.Config, logger golog.Logger) {
	const width, height = 320, 240
	var seq uint64
	for {
		if !utils.SelectContextOrWait(ctx, 100*time.Millisecond) {
			return
		}
		seq++
		frame := &transport.RawFrame{
			Header: transport.Header{Seq: seq, Stamp: time.Now(), FrameID: cfg.CameraFrame},
			Width:  width,
			Height: height,
			Data:   syntheticBGR(width, height, seq),
		}
		if err := bus.Publish(cfg.InputTopic, frame); err != nil {
			logger.Errorw("frame publish failed", "seq", seq, "error", err)
			return
		}
	}
}

// syntheticBGR renders a moving gradient so successive frames differ.
func syntheticBGR(width, height int, seq uint64) []byte {
	data := make([]byte, width*height*3)
	k := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[k] = byte((x + int(seq)) % 256)
			data[k+1] = byte(y % 256)
			data[k+2] = byte((x + y) % 256)
			k += 3
		}
	}
	return data
}

// saveFrameFunc writes the latest annotated frame as a PNG, overwriting the
// previous one.
func saveFrameFunc(dir string, logger golog.Logger) node.DisplayFunc {
	return func(img image.Image) {
		path := filepath.Join(dir, "annotated.png")
		f, err := os.Create(path)
		if err != nil {
			logger.Warnw("could not open display file", "path", path, "error", err)
			return
		}
		if err := png.Encode(f, img); err != nil {
			logger.Warnw("could not encode display frame", "error", err)
		}
		utils.UncheckedErrorFunc(f.Close)
	}
}
